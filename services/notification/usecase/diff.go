package usecase

import (
	"reflect"
	"regexp"

	"lecturenotify/domain"

	"github.com/bytedance/sonic"
)

const redacted = "[REDACTED]"

// secretField matches every key whose value must never reach the audit
// trail, on either side of a change.
var secretField = regexp.MustCompile(`(?i)password|token|secret|refresh|encrypted|service_account`)

// FieldChange is one entry of a settings diff.
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// diffSettings returns the changed leaf fields between two settings rows,
// keyed by dotted path (for example "email_config.smtp_host"). A nil before
// means the row is new.
func diffSettings(before, after *domain.NotificationSettings) (map[string]FieldChange, error) {
	left, err := flattenSettings(before)
	if err != nil {
		return nil, err
	}
	right, err := flattenSettings(after)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]FieldChange)
	for k, rv := range right {
		lv, ok := left[k]
		if !ok || !reflect.DeepEqual(lv, rv) {
			changes[k] = FieldChange{From: lv, To: rv}
		}
	}
	for k, lv := range left {
		if _, ok := right[k]; !ok {
			changes[k] = FieldChange{From: lv, To: nil}
		}
	}

	for k, c := range changes {
		if secretField.MatchString(k) {
			c.From, c.To = redactValue(c.From), redactValue(c.To)
			changes[k] = c
		}
	}
	return changes, nil
}

// redactValue keeps the difference between "set" and "unset" visible.
func redactValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	return redacted
}

func flattenSettings(s *domain.NotificationSettings) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if s == nil {
		return out, nil
	}

	view := struct {
		Channels       domain.Channels        `json:"channels"`
		EmailConfig    *domain.EmailConfig    `json:"email_config,omitempty"`
		SMSConfig      *domain.SMSConfig      `json:"sms_config,omitempty"`
		PushConfig     *domain.PushConfig     `json:"push_config,omitempty"`
		CalendarConfig *domain.CalendarConfig `json:"calendar_config,omitempty"`
	}{s.Channels, s.EmailConfig, s.SMSConfig, s.PushConfig, s.CalendarConfig}

	raw, err := sonic.Marshal(view)
	if err != nil {
		return nil, err
	}
	var tree map[string]interface{}
	if err := sonic.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]interface{}) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]interface{}); ok {
			flatten(key, child, out)
			continue
		}
		out[key] = v
	}
}

// changesToJSON converts a diff into the audit row's jsonb payload.
func changesToJSON(changes map[string]FieldChange) map[string]interface{} {
	out := make(map[string]interface{}, len(changes))
	for k, c := range changes {
		out[k] = map[string]interface{}{"from": c.From, "to": c.To}
	}
	return out
}
