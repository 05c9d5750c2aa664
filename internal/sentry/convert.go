package sentry

import (
	"github.com/getsentry/sentry-go"

	"github.com/andersoncleaning/telemetry/internal/event"
)

const keyTags = "tags"

// toDocument renders the parts of a sentry-go event that may carry PII, plus
// the fields used for alerting, as an event document.
func toDocument(ev *sentry.Event) *event.Event {
	var m event.Map
	add := func(key string, v event.Value) { m = append(m, event.Field{Key: key, Value: v}) }

	add(event.KeyEventID, event.String(ev.EventID))
	if ev.Level != "" {
		add(event.KeyLevel, event.String(ev.Level))
	}
	if ev.Message != "" {
		add(event.KeyMessage, event.String(ev.Message))
	}
	if len(ev.Fingerprint) > 0 {
		add(event.KeyFingerprint, event.FromAny(ev.Fingerprint))
	}
	if ev.Environment != "" {
		add(event.KeyEnvironment, event.String(ev.Environment))
	}
	if ev.Release != "" {
		add(event.KeyRelease, event.String(ev.Release))
	}
	if ev.Request != nil {
		add(event.KeyRequest, requestDocument(ev.Request))
	}
	if u := userDocument(ev.User); len(u) > 0 {
		add(event.KeyUser, u)
	}
	if len(ev.Extra) > 0 {
		add(event.KeyExtra, event.FromAny(ev.Extra))
	}
	if len(ev.Contexts) > 0 {
		contexts := make(map[string]interface{}, len(ev.Contexts))
		for k, c := range ev.Contexts {
			contexts[k] = map[string]interface{}(c)
		}
		add(event.KeyContexts, event.FromAny(contexts))
	}
	if len(ev.Tags) > 0 {
		add(keyTags, event.FromAny(ev.Tags))
	}
	if len(ev.Breadcrumbs) > 0 {
		crumbs := make(event.List, 0, len(ev.Breadcrumbs))
		for _, b := range ev.Breadcrumbs {
			crumb := event.Map{}
			if b != nil && b.Data != nil {
				crumb = crumb.With("data", event.FromAny(b.Data))
			}
			crumbs = append(crumbs, crumb)
		}
		add(event.KeyBreadcrumbs, event.Map{{Key: event.KeyValues, Value: crumbs}})
	}
	if len(ev.Exception) > 0 {
		excs := make(event.List, 0, len(ev.Exception))
		for _, x := range ev.Exception {
			excs = append(excs, event.Map{
				{Key: "type", Value: event.String(x.Type)},
				{Key: "value", Value: event.String(x.Value)},
			})
		}
		add(event.KeyException, event.Map{{Key: event.KeyValues, Value: excs}})
	}
	return event.New(m)
}

func requestDocument(r *sentry.Request) event.Map {
	m := event.Map{{Key: "url", Value: event.String(r.URL)}}
	if r.QueryString != "" {
		m = m.With("query_string", event.String(r.QueryString))
	}
	if r.Cookies != "" {
		m = m.With("cookies", event.String(r.Cookies))
	}
	if len(r.Headers) > 0 {
		m = m.With("headers", event.FromAny(r.Headers))
	}
	if r.Data != "" {
		m = m.With("data", event.String(r.Data))
	}
	return m
}

func userDocument(u sentry.User) event.Map {
	var m event.Map
	set := func(key, val string) {
		if val != "" {
			m = m.With(key, event.String(val))
		}
	}
	set("id", u.ID)
	set("email", u.Email)
	set("username", u.Username)
	set("ip_address", u.IPAddress)
	set("name", u.Name)
	if len(u.Data) > 0 {
		m = m.With("data", event.FromAny(u.Data))
	}
	return m
}

// applyDocument copies the sanitized fields of doc back onto ev.
func applyDocument(ev *sentry.Event, doc *event.Event) {
	if req, ok := doc.GetMap(event.KeyRequest); ok && ev.Request != nil {
		applyRequest(ev.Request, req)
	}
	if user, ok := doc.GetMap(event.KeyUser); ok {
		applyUser(&ev.User, user)
	}
	if extra, ok := doc.GetMap(event.KeyExtra); ok {
		ev.Extra = toObject(extra)
	}
	if contexts, ok := doc.GetMap(event.KeyContexts); ok {
		out := make(map[string]sentry.Context, len(contexts))
		for _, f := range contexts {
			if obj, ok := event.ToAny(f.Value).(map[string]interface{}); ok {
				out[f.Key] = obj
			}
		}
		ev.Contexts = out
	}
	if tags, ok := doc.GetMap(keyTags); ok {
		ev.Tags = toStrings(tags)
	}
	if v, ok := doc.Get(event.KeyBreadcrumbs); ok {
		crumbs, _ := event.Values(v)
		for i, c := range crumbs {
			if i >= len(ev.Breadcrumbs) || ev.Breadcrumbs[i] == nil {
				continue
			}
			if cm, ok := c.(event.Map); ok {
				if data, ok := cm.GetMap("data"); ok {
					ev.Breadcrumbs[i].Data = toObject(data)
				}
			}
		}
	}
	for i, x := range doc.Exceptions() {
		if i < len(ev.Exception) {
			ev.Exception[i].Value = x.Value
		}
	}
}

func applyRequest(r *sentry.Request, req event.Map) {
	r.URL, _ = req.GetString("url")
	if qs, ok := req.GetString("query_string"); ok {
		r.QueryString = qs
	}
	if v, ok := req.Get("cookies"); ok {
		r.Cookies = cookieString(v)
	}
	if h, ok := req.GetMap("headers"); ok {
		r.Headers = toStrings(h)
	}
	if v, ok := req.Get("data"); ok {
		switch d := v.(type) {
		case event.String:
			r.Data = string(d)
		default:
			b, _ := event.Marshal(d)
			r.Data = string(b)
		}
	}
	// The remote address duplicates the client IP, which is never sent.
	delete(r.Env, "REMOTE_ADDR")
}

// cookieString renders the redacted cookie object as a cookie header value.
func cookieString(v event.Value) string {
	m, ok := v.(event.Map)
	if !ok {
		s, _ := v.(event.String)
		return string(s)
	}
	out := ""
	for i, f := range m {
		if i > 0 {
			out += "; "
		}
		s, _ := f.Value.(event.String)
		out += f.Key + "=" + string(s)
	}
	return out
}

func applyUser(u *sentry.User, user event.Map) {
	u.ID, _ = user.GetString("id")
	u.Email, _ = user.GetString("email")
	u.Username, _ = user.GetString("username")
	u.IPAddress, _ = user.GetString("ip_address")
	u.Name, _ = user.GetString("name")
	if data, ok := user.GetMap("data"); ok {
		u.Data = toStrings(data)
	}
}

func toObject(m event.Map) map[string]interface{} {
	obj, _ := event.ToAny(m).(map[string]interface{})
	return obj
}

func toStrings(m event.Map) map[string]string {
	out := make(map[string]string, len(m))
	for _, f := range m {
		switch v := f.Value.(type) {
		case event.String:
			out[f.Key] = string(v)
		default:
			b, _ := event.Marshal(v)
			out[f.Key] = string(b)
		}
	}
	return out
}

