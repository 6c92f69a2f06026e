package persona

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func directoryStub(t *testing.T, records map[string]directoryRecord) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record, ok := records[r.URL.Query().Get("email")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"first_name":"` + record.FirstName +
			`","department":"` + record.Department + `","team":"` + record.Team + `"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResolveClassifiesByTeamThenDepartment(t *testing.T) {
	server := directoryStub(t, map[string]directoryRecord{
		"ops@example.com": {FirstName: "Kim", Department: "IT", Team: "TechOps"},
		"dev@example.com": {FirstName: "Ana", Department: "Engineering", Team: "Platform"},
		"fin@example.com": {FirstName: "Bo", Department: "Finance", Team: "Accounts"},
	})
	r := NewResolver(server.URL, time.Minute)

	ctx := context.Background()
	assert.Equal(t, LabelTechOps, r.Resolve(ctx, "ops@example.com").PersonaLabel)
	assert.Equal(t, LabelEngineering, r.Resolve(ctx, "dev@example.com").PersonaLabel)
	assert.Equal(t, LabelOther, r.Resolve(ctx, "fin@example.com").PersonaLabel)
	assert.Equal(t, "Kim", r.Resolve(ctx, "ops@example.com").FirstName)
}

func TestResolveNormalizesEmail(t *testing.T) {
	server := directoryStub(t, map[string]directoryRecord{
		"dev@example.com": {Department: "Engineering"},
	})
	r := NewResolver(server.URL, time.Minute)

	pctx := r.Resolve(context.Background(), "  Dev@Example.COM ")
	assert.Equal(t, LabelEngineering, pctx.PersonaLabel)
}

func TestResolveDegradesToNeutral(t *testing.T) {
	ctx := context.Background()

	// Unknown user: directory returns 404.
	server := directoryStub(t, nil)
	r := NewResolver(server.URL, time.Minute)
	assert.Equal(t, Neutral(), r.Resolve(ctx, "ghost@example.com"))

	// Directory down.
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	r = NewResolver(broken.URL, time.Minute)
	assert.Equal(t, Neutral(), r.Resolve(ctx, "dev@example.com"))

	// No directory configured, or no email.
	r = NewResolver("", time.Minute)
	assert.Equal(t, Neutral(), r.Resolve(ctx, "dev@example.com"))
	r = NewResolver("http://directory.invalid", time.Minute)
	assert.Equal(t, Neutral(), r.Resolve(ctx, ""))
}

func TestSearchHintPerLabel(t *testing.T) {
	assert.Contains(t, Context{PersonaLabel: LabelTechOps}.SearchHint(), "1st level support")
	assert.Contains(t, Context{PersonaLabel: LabelEngineering}.SearchHint(), "tracker/wiki")
	assert.Contains(t, Context{PersonaLabel: LabelOther}.SearchHint(), "triage info")
	assert.Contains(t, Context{}.SearchHint(), "triage info")
}

func TestResponderParagraphNamesRequester(t *testing.T) {
	with := Context{PersonaLabel: LabelEngineering, FirstName: "Ana"}.ResponderParagraph()
	assert.Contains(t, with, "The requester is **Ana**, from **Engineering**.")

	without := Context{PersonaLabel: LabelEngineering}.ResponderParagraph()
	assert.Contains(t, without, "The requester is from **Engineering**.")

	other := Context{PersonaLabel: LabelOther}.ResponderParagraph()
	assert.Contains(t, other, "another department")
}
