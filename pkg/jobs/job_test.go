package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs/payloads"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	id := uuid.New()
	raw := []byte(`{"id":"` + id.String() + `","type":"Price_Alert","user_id":" u-1 ","notification_id":"n-1","channel":"sms"}`)

	job, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Priority != enums.PriorityNormal || job.QueueName() != "notifications.normal" {
		t.Fatalf("expected normal priority default, got %q", job.Priority)
	}
	if job.Type != enums.NotificationTypePriceAlert || job.UserID != "u-1" {
		t.Fatalf("expected normalized fields, got %+v", job)
	}
	if string(job.Data) != `{}` {
		t.Fatalf("expected empty object data, got %s", job.Data)
	}
}

func TestDecodeRejectsInvalidJobs(t *testing.T) {
	id := uuid.NewString()
	cases := map[string]string{
		"malformed":     `{"id":`,
		"missing id":    `{"type":"reminder","user_id":"u","notification_id":"n","channel":"email"}`,
		"bad channel":   `{"id":"` + id + `","type":"reminder","user_id":"u","notification_id":"n","channel":"fax"}`,
		"bad priority":  `{"id":"` + id + `","type":"reminder","user_id":"u","notification_id":"n","channel":"email","priority":"urgent"}`,
		"negative":      `{"id":"` + id + `","type":"reminder","user_id":"u","notification_id":"n","channel":"email","retry_count":-1}`,
		"array data":    `{"id":"` + id + `","type":"reminder","user_id":"u","notification_id":"n","channel":"email","data":[1]}`,
		"missing user":  `{"id":"` + id + `","type":"reminder","notification_id":"n","channel":"email"}`,
		"missing notif": `{"id":"` + id + `","type":"reminder","user_id":"u","channel":"email"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code, got %s", pkgerrors.CodeOf(err))
			}
			if !pkgerrors.IsPermanent(err) {
				t.Fatal("decode failures must be permanent")
			}
		})
	}
}

func TestEncodeDecodeKeepsSchedule(t *testing.T) {
	at := time.Date(2026, 11, 3, 7, 0, 0, 0, time.FixedZone("EST", -5*3600))
	job := NotificationJob{
		ID:             uuid.New(),
		Type:           enums.NotificationTypeReminder,
		UserID:         "u-1",
		NotificationID: "n-1",
		Channel:        enums.ChannelPush,
		Priority:       enums.PriorityHigh,
		Data:           json.RawMessage(`{"title":"Check in","message":"Check-in opens soon"}`),
		RetryCount:     2,
		ScheduledFor:   &at,
	}

	raw, err := job.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ScheduledFor == nil || !decoded.ScheduledFor.Equal(at) || decoded.ScheduledFor.Location() != time.UTC {
		t.Fatalf("expected schedule normalized to UTC, got %v", decoded.ScheduledFor)
	}
	if decoded.RetryCount != 2 || decoded.QueueName() != "notifications.high" {
		t.Fatalf("unexpected decoded job %+v", decoded)
	}

	payload, err := decoded.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	reminder, ok := payload.(payloads.Reminder)
	if !ok || reminder.Title() != "Check in" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}
