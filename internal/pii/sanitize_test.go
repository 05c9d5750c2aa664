package pii

import (
	"strings"
	"testing"

	"github.com/andersoncleaning/telemetry/internal/event"
)

const fullEvent = `{
	"event_id": "0f1e2d3c",
	"level": "error",
	"request": {
		"url": "https://example.com/quote",
		"query_string": "email=a@b.com&status=ok",
		"headers": {"Authorization": "Bearer abc", "Accept": "text/html"},
		"cookies": {"session": "s3cr3t"},
		"data": {"name": "Office", "contact": {"phone": "555-123-4567"}}
	},
	"user": {"id": "u1", "email": "user@example.com", "username": "jane@example.com", "ip_address": "1.2.3.4"},
	"extra": {"api_key": "k", "attempt": 2},
	"contexts": {"device": {"model": "x"}, "auth": {"kind": "oauth"}},
	"tags": {"token": "t", "page": "home"},
	"breadcrumbs": {"values": [
		{"category": "fetch", "data": {"url": "/api", "password": "p"}},
		{"category": "ui.click", "message": "clicked"}
	]},
	"exception": {"values": [
		{"type": "Error", "value": "mail to jane@example.org failed, call 555-123-4567"}
	]}
}`

func mustParse(t *testing.T, doc string) *event.Event {
	t.Helper()
	e, err := event.ParseEvent([]byte(doc))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	return e
}

func marshal(t *testing.T, e *event.Event) string {
	t.Helper()
	b, err := e.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	return string(b)
}

func TestSanitize_EndToEnd(t *testing.T) {
	in := mustParse(t, fullEvent)
	before := marshal(t, in)

	out := Sanitize(in)

	user, _ := out.GetMap("user")
	if user.Has("ip_address") {
		t.Error("user.ip_address should be removed")
	}
	if s, _ := user.GetString("email"); s != "us***@example.com" {
		t.Errorf("user.email = %q, want us***@example.com", s)
	}
	if s, _ := user.GetString("username"); s != "ja***@example.com" {
		t.Errorf("user.username = %q", s)
	}
	if s, _ := user.GetString("id"); s != "u1" {
		t.Errorf("user.id = %q, want u1", s)
	}

	req, _ := out.GetMap("request")
	qs, _ := req.GetString("query_string")
	if !strings.Contains(qs, "status=ok") || !strings.Contains(qs, "email=[Redacted]") || strings.Contains(qs, "a@b.com") {
		t.Errorf("query_string = %q", qs)
	}
	headers, _ := req.GetMap("headers")
	if s, _ := headers.GetString("Authorization"); s != RedactedToken {
		t.Errorf("Authorization = %q", s)
	}
	if s, _ := headers.GetString("Accept"); s != "text/html" {
		t.Errorf("Accept = %q", s)
	}
	cookies, _ := req.GetMap("cookies")
	if s, _ := cookies.GetString("filtered"); s != RedactedToken || len(cookies) != 1 {
		t.Errorf("cookies = %v", cookies)
	}
	data, _ := req.GetMap("data")
	if s, _ := data.GetString("name"); s != "Office" {
		t.Errorf("data.name = %q, want Office", s)
	}
	contact, _ := data.GetMap("contact")
	if s, _ := contact.GetString("phone"); s != RedactedToken {
		t.Errorf("data.contact.phone = %q", s)
	}

	extra, _ := out.GetMap("extra")
	if s, _ := extra.GetString("api_key"); s != RedactedToken {
		t.Errorf("extra.api_key = %q", s)
	}
	contexts, _ := out.GetMap("contexts")
	if s, _ := contexts.GetString("auth"); s != RedactedToken {
		t.Errorf("contexts.auth = %v", contexts)
	}
	tags, _ := out.GetMap("tags")
	if s, _ := tags.GetString("page"); s != "home" {
		t.Errorf("tags.page = %q", s)
	}

	crumbs, _ := out.GetMap("breadcrumbs")
	list, _ := event.Values(crumbs)
	if len(list) != 2 {
		t.Fatalf("breadcrumbs = %d, want 2", len(list))
	}
	crumbData, _ := list[0].(event.Map).GetMap("data")
	if s, _ := crumbData.GetString("password"); s != RedactedToken {
		t.Errorf("breadcrumb password = %q", s)
	}
	if s, _ := crumbData.GetString("url"); s != "/api" {
		t.Errorf("breadcrumb url = %q", s)
	}
	if list[1].(event.Map).Has("data") {
		t.Error("breadcrumb without data gained a data field")
	}

	exc := out.Exceptions()
	if len(exc) != 1 {
		t.Fatalf("exceptions = %d", len(exc))
	}
	if strings.Contains(exc[0].Value, "jane@example.org") || strings.Contains(exc[0].Value, "555-123-4567") {
		t.Errorf("exception value leaked PII: %q", exc[0].Value)
	}
	if !strings.Contains(exc[0].Value, "[Email]") || !strings.Contains(exc[0].Value, "[Phone]") {
		t.Errorf("exception value = %q, want placeholders", exc[0].Value)
	}

	if after := marshal(t, in); after != before {
		t.Error("Sanitize mutated its input")
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	once := Sanitize(mustParse(t, fullEvent))
	twice := Sanitize(once)

	if a, b := marshal(t, once), marshal(t, twice); a != b {
		t.Errorf("second pass changed the event:\n%s\n%s", a, b)
	}
}

func TestSanitize_AbsentSectionsStayAbsent(t *testing.T) {
	out := Sanitize(mustParse(t, `{"event_id":"x","message":"hi"}`))
	if got := marshal(t, out); got != `{"event_id":"x","message":"hi"}` {
		t.Errorf("Sanitize() = %s", got)
	}
}

func TestSanitize_MalformedSectionsPassThrough(t *testing.T) {
	doc := `{"request":"oops","user":[1,2],"breadcrumbs":7,"exception":{"values":"x"},"extra":null}`
	out := Sanitize(mustParse(t, doc))
	if got := marshal(t, out); got != doc {
		t.Errorf("Sanitize() = %s, want unchanged", got)
	}
}

func TestSanitize_Nil(t *testing.T) {
	if Sanitize(nil) != nil {
		t.Error("Sanitize(nil) should be nil")
	}
}

func TestSanitize_StringBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json body", `{"email":"a@b.com","qty":2}`, `{"email":"[Redacted]","qty":2}`},
		{"form body", `email=a@b.com&qty=2`, `email=[Redacted]&qty=2`},
		{"broken json", `{"email":`, `{"email":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := event.New(event.Map{{Key: "request", Value: event.Map{{Key: "data", Value: event.String(tt.body)}}}})
			out := Sanitize(e)
			req, _ := out.GetMap("request")
			if s, _ := req.GetString("data"); s != tt.want {
				t.Errorf("data = %q, want %q", s, tt.want)
			}
		})
	}
}

func TestSanitize_PairForms(t *testing.T) {
	doc := `{"request":{
		"headers":[["Cookie","a=b"],["Accept","*/*"]],
		"query_string":[["access_token","xyz"],["page","2"]]
	},"breadcrumbs":[{"data":{"email":"x@y.z"}}]}`

	out := Sanitize(mustParse(t, doc))
	want := `{"request":{"headers":[["Cookie","[Redacted]"],["Accept","*/*"]],` +
		`"query_string":[["access_token","[Redacted]"],["page","2"]]},` +
		`"breadcrumbs":[{"data":{"email":"[Redacted]"}}]}`
	if got := marshal(t, out); got != want {
		t.Errorf("Sanitize() =\n%s\nwant\n%s", got, want)
	}
}
