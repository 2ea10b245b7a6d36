package vault

import (
	"fmt"
	"strings"
	"time"

	"iiifvault/pkg/iiif"
)

// ActionType tags the mutation an Action requests.
type ActionType string

// Supported action tags.
const (
	ActionUpdateLabel            ActionType = "UPDATE_LABEL"
	ActionUpdateSummary          ActionType = "UPDATE_SUMMARY"
	ActionUpdateMetadata         ActionType = "UPDATE_METADATA"
	ActionUpdateRights           ActionType = "UPDATE_RIGHTS"
	ActionUpdateNavDate          ActionType = "UPDATE_NAV_DATE"
	ActionUpdateBehavior         ActionType = "UPDATE_BEHAVIOR"
	ActionUpdateViewingDirection ActionType = "UPDATE_VIEWING_DIRECTION"
	ActionAddCanvas              ActionType = "ADD_CANVAS"
	ActionRemoveCanvas           ActionType = "REMOVE_CANVAS"
	ActionReorderCanvases        ActionType = "REORDER_CANVASES"
	ActionMoveItem               ActionType = "MOVE_ITEM"
	ActionBatchUpdate            ActionType = "BATCH_UPDATE"
)

// ActionTypes lists every supported tag.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionUpdateLabel,
		ActionUpdateSummary,
		ActionUpdateMetadata,
		ActionUpdateRights,
		ActionUpdateNavDate,
		ActionUpdateBehavior,
		ActionUpdateViewingDirection,
		ActionAddCanvas,
		ActionRemoveCanvas,
		ActionReorderCanvases,
		ActionMoveItem,
		ActionBatchUpdate,
	}
}

// Action is one serializable mutation request. Only the fields relevant to
// its Type are read; the rest stay zero.
type Action struct {
	Type     ActionType `json:"type"`
	TargetID string     `json:"targetId,omitempty"`

	Label            iiif.LanguageMap      `json:"label,omitempty"`
	Summary          iiif.LanguageMap      `json:"summary,omitempty"`
	Metadata         []iiif.MetadataEntry  `json:"metadata,omitempty"`
	Rights           string                `json:"rights,omitempty"`
	NavDate          *time.Time            `json:"navDate,omitempty"`
	ClearNavDate     bool                  `json:"clearNavDate,omitempty"`
	Behavior         []string              `json:"behavior,omitempty"`
	ViewingDirection string                `json:"viewingDirection,omitempty"`
	Canvas           *iiif.Canvas          `json:"canvas,omitempty"`
	CanvasID         string                `json:"canvasId,omitempty"`
	Index            int                   `json:"index,omitempty"`
	Order            []string              `json:"order,omitempty"`
	NewParentID      string                `json:"newParentId,omitempty"`
	Batch            []Action              `json:"batch,omitempty"`
}

// Validation is the outcome of a shape check. Valid actions can still fail at
// apply time when their targets do not exist.
type Validation struct {
	Valid  bool
	Reason string
}

func invalid(format string, args ...any) Validation {
	return Validation{Reason: fmt.Sprintf(format, args...)}
}

func plausibleID(id string) bool {
	return id != "" && !strings.ContainsAny(id, " \t\n")
}

// ValidateAction checks an action's shape without consulting any state:
// required fields for its tag are present and ids are syntactically
// plausible. Existence is checked at dispatch time.
func ValidateAction(action Action) Validation {
	switch action.Type {
	case ActionBatchUpdate:
		if len(action.Batch) == 0 {
			return invalid("empty batch")
		}
		for i, sub := range action.Batch {
			if sub.Type == ActionBatchUpdate {
				return invalid("batch entry %d: batches do not nest", i)
			}
			if v := ValidateAction(sub); !v.Valid {
				return invalid("batch entry %d: %s", i, v.Reason)
			}
		}
		return Validation{Valid: true}
	case ActionUpdateLabel, ActionUpdateSummary, ActionUpdateMetadata,
		ActionUpdateRights, ActionUpdateBehavior, ActionUpdateViewingDirection:
	case ActionUpdateNavDate:
		if action.NavDate == nil && !action.ClearNavDate {
			return invalid("nav date update carries neither a date nor a clear flag")
		}
	case ActionAddCanvas:
		if action.Canvas == nil {
			return invalid("add canvas without canvas payload")
		}
		if !plausibleID(action.Canvas.ID) {
			return invalid("add canvas with implausible canvas id %q", action.Canvas.ID)
		}
	case ActionRemoveCanvas:
		if !plausibleID(action.CanvasID) {
			return invalid("remove canvas with implausible canvas id %q", action.CanvasID)
		}
	case ActionReorderCanvases:
		if len(action.Order) == 0 {
			return invalid("reorder without an order")
		}
		for _, id := range action.Order {
			if !plausibleID(id) {
				return invalid("reorder lists implausible id %q", id)
			}
		}
	case ActionMoveItem:
		if !plausibleID(action.NewParentID) {
			return invalid("move with implausible parent id %q", action.NewParentID)
		}
	default:
		return invalid("unknown action type %q", action.Type)
	}
	if !plausibleID(action.TargetID) {
		return invalid("%s with implausible target id %q", action.Type, action.TargetID)
	}
	return Validation{Valid: true}
}

// Convenience constructors for the common actions.

// NewUpdateLabelAction builds an UPDATE_LABEL action.
func NewUpdateLabelAction(targetID string, label iiif.LanguageMap) Action {
	return Action{Type: ActionUpdateLabel, TargetID: targetID, Label: label}
}

// NewUpdateSummaryAction builds an UPDATE_SUMMARY action.
func NewUpdateSummaryAction(targetID string, summary iiif.LanguageMap) Action {
	return Action{Type: ActionUpdateSummary, TargetID: targetID, Summary: summary}
}

// NewAddCanvasAction builds an ADD_CANVAS action inserting canvas into the
// manifest's canvas sequence at index (negative appends).
func NewAddCanvasAction(manifestID string, canvas *iiif.Canvas, index int) Action {
	return Action{Type: ActionAddCanvas, TargetID: manifestID, Canvas: canvas, Index: index}
}

// NewRemoveCanvasAction builds a REMOVE_CANVAS action.
func NewRemoveCanvasAction(manifestID, canvasID string) Action {
	return Action{Type: ActionRemoveCanvas, TargetID: manifestID, CanvasID: canvasID}
}

// NewReorderCanvasesAction builds a REORDER_CANVASES action.
func NewReorderCanvasesAction(manifestID string, order []string) Action {
	return Action{Type: ActionReorderCanvases, TargetID: manifestID, Order: order}
}

// NewMoveItemAction builds a MOVE_ITEM action.
func NewMoveItemAction(targetID, newParentID string, index int) Action {
	return Action{Type: ActionMoveItem, TargetID: targetID, NewParentID: newParentID, Index: index}
}

// NewBatchAction builds a BATCH_UPDATE action from sub-actions.
func NewBatchAction(actions ...Action) Action {
	return Action{Type: ActionBatchUpdate, Batch: actions}
}
