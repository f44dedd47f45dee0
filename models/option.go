package models

type Option struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	QuestionID uint   `gorm:"column:question_id;index;not null" json:"question_id"`
	Value      string `gorm:"column:value;size:255;not null" json:"value"`
	Label      string `gorm:"column:label;type:text;not null" json:"label"`
	Order      int    `gorm:"column:sort_order;not null;default:0" json:"order"`
}

func (Option) TableName() string {
	return "options"
}

// OtherValue is the reserved option value for "respondent typed their own answer".
const OtherValue = "other"
