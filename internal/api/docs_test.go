package api

import (
	"net/http"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/patterns"
)

var routerAnnotation = regexp.MustCompile(`@Router\s+(\S+)\s+\[(\w+)\]`)

func annotatedRoutes(t *testing.T, files ...string) map[string]bool {
	t.Helper()
	out := make(map[string]bool)
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range routerAnnotation.FindAllStringSubmatch(string(src), -1) {
			out[strings.ToUpper(m[2])+" "+m[1]] = true
		}
	}
	return out
}

func TestEveryRouteIsDocumented(t *testing.T) {
	r := NewRouter(RouterConfig{
		Patterns: patterns.NewRegistry(),
		Verifier: auth.StaticVerifier{UserID: "u1"},
		Events:   http.NotFoundHandler(),
	})

	routes := make(map[string]bool)
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	docs := annotatedRoutes(t, "handlers.go", "../sse/broker.go")
	for route := range routes {
		if !docs[route] {
			t.Errorf("route %s has no @Router annotation", route)
		}
	}
	for route := range docs {
		if !routes[route] {
			t.Errorf("annotation %s matches no route", route)
		}
	}
}

func TestResponseTypesCarryNoValidateTags(t *testing.T) {
	for _, f := range []string{"dto.go", "json.go"} {
		src, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(src), `validate:"`) {
			t.Errorf("%s carries validate tags; drafts are validated by journal.ValidateDraft", f)
		}
	}
}
