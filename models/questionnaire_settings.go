package models

import (
	"encoding/json"
	"errors"
)

// NullableInt tells "field absent" apart from an explicit null in a patch.
type NullableInt struct {
	Set   bool
	Value *int
}

func (n *NullableInt) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n NullableInt) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

type QuestionnaireSettings struct {
	MaxResponses    NullableInt `json:"max_responses,omitempty"` // nil = unlimited
	RequireLogin    *bool       `json:"require_login,omitempty"`
	CollectEmail    *bool       `json:"collect_email,omitempty"`
	ShowProgress    *bool       `json:"show_progress,omitempty"`
	AllowResume     *bool       `json:"allow_resume,omitempty"`
	ThankYouMessage string      `json:"thank_you_message,omitempty"`
}

// Validate clamps max_responses to at least 1.
func (s *QuestionnaireSettings) Validate() error {
	if s == nil {
		return errors.New("settings are empty")
	}
	if s.MaxResponses.Set && s.MaxResponses.Value != nil && *s.MaxResponses.Value < 1 {
		v := 1
		s.MaxResponses.Value = &v
	}
	return nil
}

func ParseQuestionnaireSettings(raw []byte) (*QuestionnaireSettings, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &QuestionnaireSettings{}, nil
	}
	var s QuestionnaireSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return &QuestionnaireSettings{}, errors.New("settings is not valid JSON")
	}
	if err := s.Validate(); err != nil {
		return &QuestionnaireSettings{}, err
	}
	return &s, nil
}

// Merge applies the fields present in patch over base.
func (s *QuestionnaireSettings) Merge(patch *QuestionnaireSettings) *QuestionnaireSettings {
	out := QuestionnaireSettings{}
	if s != nil {
		out = *s
	}
	if patch == nil {
		return &out
	}
	if patch.MaxResponses.Set {
		out.MaxResponses = patch.MaxResponses
	}
	if patch.RequireLogin != nil {
		out.RequireLogin = patch.RequireLogin
	}
	if patch.CollectEmail != nil {
		out.CollectEmail = patch.CollectEmail
	}
	if patch.ShowProgress != nil {
		out.ShowProgress = patch.ShowProgress
	}
	if patch.AllowResume != nil {
		out.AllowResume = patch.AllowResume
	}
	if patch.ThankYouMessage != "" {
		out.ThankYouMessage = patch.ThankYouMessage
	}
	return &out
}

func (s *QuestionnaireSettings) LoginRequired() bool {
	return s != nil && s.RequireLogin != nil && *s.RequireLogin
}

// ResumeAllowed defaults to true.
func (s *QuestionnaireSettings) ResumeAllowed() bool {
	return s == nil || s.AllowResume == nil || *s.AllowResume
}

func (s *QuestionnaireSettings) Limit() (int, bool) {
	if s == nil || s.MaxResponses.Value == nil {
		return 0, false
	}
	return *s.MaxResponses.Value, true
}
