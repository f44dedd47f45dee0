package models

type (
	ConditionType string
	ActionType    string
)

const (
	ConditionEquals      ConditionType = "equals"
	ConditionNotEquals   ConditionType = "not_equals"
	ConditionContains    ConditionType = "contains"
	ConditionNotContains ConditionType = "not_contains"
	ConditionGreaterThan ConditionType = "greater_than"
	ConditionLessThan    ConditionType = "less_than"

	ActionShow ActionType = "show"
	ActionHide ActionType = "hide"
	ActionJump ActionType = "jump"
)

func (c ConditionType) Valid() bool {
	switch c {
	case ConditionEquals, ConditionNotEquals, ConditionContains,
		ConditionNotContains, ConditionGreaterThan, ConditionLessThan:
		return true
	}
	return false
}

func (a ActionType) Valid() bool {
	switch a {
	case ActionShow, ActionHide, ActionJump:
		return true
	}
	return false
}

// QuestionLogic is a branching rule for the fill experience. The server only
// stores it; the form runtime evaluates it.
type QuestionLogic struct {
	ID               uint          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	QuestionID       uint          `gorm:"column:question_id;index;not null" json:"question_id"`
	ConditionType    ConditionType `gorm:"column:condition_type;size:20;not null" json:"condition_type"`
	ConditionValue   string        `gorm:"column:condition_value;type:text" json:"condition_value"`
	ActionType       ActionType    `gorm:"column:action_type;size:10;not null" json:"action_type"`
	TargetQuestionID *uint         `gorm:"column:target_question_id" json:"target_question_id"`
	TargetSectionID  *uint         `gorm:"column:target_section_id" json:"target_section_id"`
}

func (QuestionLogic) TableName() string {
	return "question_logic"
}
