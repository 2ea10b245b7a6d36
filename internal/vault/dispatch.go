package vault

import (
	"fmt"

	"iiifvault/pkg/iiif"
)

// Apply validates and applies a single action to a snapshot, returning the
// resulting snapshot. The input state is returned unchanged on any error.
// Batch actions apply sub-actions in order; failing entries are skipped (and
// reported through logger) while the rest still apply.
func Apply(s *State, action Action) (*State, error) {
	return dispatch(s, action, noopLogger{})
}

func dispatch(s *State, action Action, logger Logger) (*State, error) {
	if v := ValidateAction(action); !v.Valid {
		return s, InvalidShapeError{Reason: v.Reason}
	}

	switch action.Type {
	case ActionUpdateLabel:
		return UpdateEntity(s, action.TargetID, Patch{Label: &action.Label})
	case ActionUpdateSummary:
		return UpdateEntity(s, action.TargetID, Patch{Summary: &action.Summary})
	case ActionUpdateMetadata:
		return UpdateEntity(s, action.TargetID, Patch{Metadata: &action.Metadata})
	case ActionUpdateRights:
		return UpdateEntity(s, action.TargetID, Patch{Rights: &action.Rights})
	case ActionUpdateNavDate:
		return UpdateEntity(s, action.TargetID, Patch{NavDate: action.NavDate, ClearNavDate: action.ClearNavDate})
	case ActionUpdateBehavior:
		return UpdateEntity(s, action.TargetID, Patch{Behavior: &action.Behavior})
	case ActionUpdateViewingDirection:
		if t := s.typeIndex[action.TargetID]; t != iiif.EntityCollection && t != iiif.EntityManifest {
			if !s.Has(action.TargetID) {
				return s, ErrNotFound{ID: action.TargetID}
			}
			return s, InvalidShapeError{Reason: fmt.Sprintf("%s has no viewing direction", t)}
		}
		return UpdateEntity(s, action.TargetID, Patch{ViewingDirection: &action.ViewingDirection})
	case ActionAddCanvas:
		return applyAddCanvas(s, action)
	case ActionRemoveCanvas:
		return applyRemoveCanvas(s, action)
	case ActionReorderCanvases:
		return applyReorderCanvases(s, action)
	case ActionMoveItem:
		return MoveItem(s, action.TargetID, action.NewParentID, action.Index)
	case ActionBatchUpdate:
		return applyBatch(s, action, logger)
	default:
		return s, InvalidShapeError{Reason: fmt.Sprintf("unknown action type %q", action.Type)}
	}
}

// canvasSpan reports how many leading children of a manifest are canvases.
// Manifest children are ordered canvases first, ranges after.
func (s *State) canvasSpan(manifestID string) int {
	span := 0
	for _, childID := range s.references[manifestID] {
		if s.typeIndex[childID] != iiif.EntityCanvas {
			break
		}
		span++
	}
	return span
}

func applyAddCanvas(s *State, action Action) (*State, error) {
	if !s.Has(action.TargetID) {
		return s, ErrNotFound{Type: iiif.EntityManifest, ID: action.TargetID}
	}
	if s.typeIndex[action.TargetID] != iiif.EntityManifest {
		return s, InvalidShapeError{Reason: fmt.Sprintf("%s is not a manifest", action.TargetID)}
	}
	// Clamp the insertion point to the canvas segment so a new canvas never
	// lands after a range in the child order.
	span := s.canvasSpan(action.TargetID)
	index := action.Index
	if index < 0 || index > span {
		index = span
	}
	return AddEntity(s, action.Canvas, action.TargetID, index)
}

func applyRemoveCanvas(s *State, action Action) (*State, error) {
	if !s.Has(action.TargetID) {
		return s, ErrNotFound{Type: iiif.EntityManifest, ID: action.TargetID}
	}
	if s.reverseRefs[action.CanvasID] != action.TargetID {
		return s, ErrNotFound{Type: iiif.EntityCanvas, ID: action.CanvasID}
	}
	return RemoveEntity(s, action.CanvasID)
}

func applyReorderCanvases(s *State, action Action) (*State, error) {
	if !s.Has(action.TargetID) {
		return s, ErrNotFound{Type: iiif.EntityManifest, ID: action.TargetID}
	}
	// The action reorders canvases only; any trailing ranges keep their
	// position after the canvas segment.
	span := s.canvasSpan(action.TargetID)
	children := s.references[action.TargetID]
	order := make([]string, 0, len(children))
	order = append(order, action.Order...)
	order = append(order, children[span:]...)
	return ReorderChildren(s, action.TargetID, order)
}

func applyBatch(s *State, action Action, logger Logger) (*State, error) {
	current := s
	applied, skipped := 0, 0
	for i, sub := range action.Batch {
		next, err := dispatch(current, sub, logger)
		if err != nil {
			skipped++
			logger.Warn("batch entry skipped",
				"index", i,
				"action", string(sub.Type),
				"target", sub.TargetID,
				"error", err.Error(),
			)
			continue
		}
		current = next
		applied++
	}
	logger.Debug("batch applied", "applied", applied, "skipped", skipped)
	return current, nil
}
