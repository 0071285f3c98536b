package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, name, kind, want string
	}{
		{"proj", "eventdesk-domain-events", "topics", "projects/proj/topics/eventdesk-domain-events"},
		{"proj", " mail ", "subscriptions", "projects/proj/subscriptions/mail"},
		{"proj", "projects/other/topics/t", "topics", "projects/other/topics/t"},
		{"", "t", "topics", ""},
		{"proj", "", "topics", ""},
	}
	for _, tc := range cases {
		if got := resourceName(tc.project, tc.name, tc.kind); got != tc.want {
			t.Fatalf("resourceName(%q,%q,%q) = %q, want %q", tc.project, tc.name, tc.kind, got, tc.want)
		}
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{DomainTopic: "domain", NotificationTopic: " "})
	if len(names) != 1 || names[0] != "domain" {
		t.Fatalf("unexpected topics %v", names)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); err == nil {
		t.Fatal("expected project id error")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}
