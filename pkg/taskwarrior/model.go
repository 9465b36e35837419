package taskwarrior

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskbutler/pkg/model"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
	WAITING   = "waiting"
	DELETED   = "deleted"
	RECURRING = "recurring"
)

type CustomTime struct {
	time.Time
}

const taskwarriorTimeLayout = "20060102T150405Z" // YYYYMMDDTHHMMSSZ, 'Z' indicates UTC

// UnmarshalJSON implements the json.Unmarshaler interface for CustomTime.
func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		ct.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(taskwarriorTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse Taskwarrior time string '%s': %w", s, err)
	}
	ct.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for CustomTime.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ct.Time.Format(taskwarriorTimeLayout) + `"`), nil
}

type Annotation struct {
	Description string      `json:"description"`
	Entry       *CustomTime `json:"entry"`
}

// Task is one record of `task export`. The parent link lives in a UDA whose
// name is configurable, so it is read from raw rather than a struct tag.
type Task struct {
	UUID        string       `json:"uuid"`
	Description string       `json:"description"`
	Due         *CustomTime  `json:"due,omitempty"`
	Status      string       `json:"status"`
	Project     string       `json:"project,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`

	raw map[string]json.RawMessage
}

// UDA returns a string user-defined attribute, or "" when unset.
func (t *Task) UDA(name string) string {
	v, ok := t.raw[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

func (t *Task) UnmarshalJSON(b []byte) error {
	type plain Task
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(b, &p.raw); err != nil {
		return err
	}
	*t = Task(p)
	return nil
}

// withDescription returns the raw record with its description replaced, so
// `task import` rewrites only the title.
func (t *Task) withDescription(desc string) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(desc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(t.raw)+1)
	for k, v := range t.raw {
		out[k] = v
	}
	if len(out) == 0 {
		uuid, _ := json.Marshal(t.UUID)
		status, _ := json.Marshal(t.Status)
		out["uuid"], out["status"] = uuid, status
	}
	out["description"] = b
	return out, nil
}

// ToModel maps the record onto the provider-neutral task. A due time that
// falls on local midnight is how `due:2023-01-01` is stored, so it is
// reported as a date.
func (t *Task) ToModel(parentUDA string, loc *time.Location) model.Task {
	mt := model.Task{
		ID:        t.UUID,
		Title:     t.Description,
		ParentID:  t.UDA(parentUDA),
		ProjectID: t.Project,
		Labels:    append([]string(nil), t.Tags...),
		Done:      t.Status == COMPLETED,
		Deleted:   t.Status == DELETED,
		Archived:  t.Status == RECURRING,
	}
	for _, a := range t.Annotations {
		mt.Notes = append(mt.Notes, a.Description)
	}
	if t.Due != nil && !t.Due.IsZero() {
		local := t.Due.In(loc)
		if local.Hour() == 0 && local.Minute() == 0 && local.Second() == 0 {
			mt.Due = &model.Due{Value: local.Format("2006-01-02")}
		} else {
			mt.Due = &model.Due{Value: t.Due.UTC().Format(time.RFC3339)}
		}
	}
	return mt
}
