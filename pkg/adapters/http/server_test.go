package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/internal/logging"
	"github.com/aretw0/contract/pkg/adapters/memory"
	"github.com/aretw0/contract/pkg/manifest"
	"github.com/aretw0/contract/pkg/observability"
	"github.com/aretw0/contract/pkg/registry"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/aretw0/contract/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
contracts:
  - name: pair
    params:
      - {name: arg_a, type: "Tuple[int, int]"}
    returns: "Tuple[str, str]"
`

func newTestHandler(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	m, err := manifest.Load(strings.NewReader(testManifest))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics()
	require.NoError(t, metrics.Register(reg))

	journal := memory.NewJournal(10)
	g := contract.New(
		contract.WithHooks(metrics.Hooks()),
		contract.WithHooks(observability.JournalHooks(journal, logging.NewNop())),
	)
	svc, err := service.New(g, m,
		service.WithJournal(journal),
		service.WithImplementations(map[string]registry.Function{
			"pair": func(_ context.Context, args map[string]any) (any, error) {
				in := args["arg_a"].(schema.Tuple)
				if in[0] == 0 {
					return []any{0, 0}, nil
				}
				return []any{fmt.Sprint(in[0]), fmt.Sprint(in[1])}, nil
			},
		}),
	)
	require.NoError(t, err)
	return NewHandler(svc, WithLogger(logging.NewNop()), WithGatherer(reg)), reg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestParse(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, "POST", "/v1/parse", `{"annotation": "List[Tuple[int,str]]"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ParseResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "list", resp.Descriptor.Kind)
	assert.Equal(t, "List[Tuple[int, str]]", resp.Descriptor.Name)
	require.Len(t, resp.Descriptor.SubTypes, 1)
	assert.Equal(t, "tuple", resp.Descriptor.SubTypes[0].Kind)

	w = do(t, h, "POST", "/v1/parse", `{"annotation": "List[int"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unbalanced brackets")

	w = do(t, h, "POST", "/v1/parse", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheck(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		desc    string
		body    string
		valid   bool
		message string
	}{
		{"list ok", `{"name": "arg_a", "annotation": "List[int]", "value": [1, 1, 1]}`, true, ""},
		{"list bad", `{"name": "arg_a", "annotation": "List[int]", "value": [1, 1, "1"]}`, false,
			"'arg_a' has a str at index 2, but should be int."},
		{"dict bad", `{"name": "arg_a", "annotation": "Dict[str, int]", "value": {"index": "1"}}`, false,
			"'arg_a' has a key type of str and a value type of str.\nShould have a key type of str and a value type of int."},
		{"tuple length", `{"name": "arg_a", "annotation": "Tuple[int, int]", "value": [4, 1, 1]}`, false,
			"'arg_a' has a length of 3, but should be a length of 2."},
		{"float is not int", `{"name": "n", "annotation": "int", "value": 1.5}`, false,
			"'n' is a float, but should be int."},
		{"unchecked", `{"annotation": "Optional[int]", "value": "anything"}`, true, ""},
	}

	for _, tt := range tests {
		w := do(t, h, "POST", "/v1/check", tt.body)
		require.Equal(t, http.StatusOK, w.Code, tt.desc)

		var res service.Result
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res), tt.desc)
		assert.Equal(t, tt.valid, res.Valid, tt.desc)
		assert.Equal(t, tt.message, res.Message, tt.desc)
	}
}

func TestContracts(t *testing.T) {
	h, reg := newTestHandler(t)

	w := do(t, h, "GET", "/v1/contracts", "")
	require.Equal(t, http.StatusOK, w.Code)
	var infos []service.ContractInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "pair", infos[0].Name)

	w = do(t, h, "GET", "/v1/contracts/pair", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, "GET", "/v1/contracts/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "POST", "/v1/contracts/pair/check", `{"args": [[4, 1]], "returns": ["a", "b"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res service.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.Valid)

	w = do(t, h, "POST", "/v1/contracts/pair/check", `{"returns": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.False(t, res.Valid)
	assert.Equal(t, "'return' is a int, but should be tuple.", res.Message)
	require.NotNil(t, res.Violation)
	assert.Equal(t, "return", res.Violation.Name)

	w = do(t, h, "POST", "/v1/contracts/missing/check", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contract_violations_total")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRunContract(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, "POST", "/v1/contracts/pair/run", `{"args": {"arg_a": [4, 1]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res service.RunResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.Valid)
	assert.Equal(t, []any{"4", "1"}, res.Value)

	w = do(t, h, "POST", "/v1/contracts/pair/run", `{"args": {"arg_a": [4, "1"]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = service.RunResult{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.False(t, res.Valid)
	assert.Equal(t, "'arg_a' has a str at index 1, but should be int.", res.Message)
	assert.Nil(t, res.Value)

	w = do(t, h, "POST", "/v1/contracts/pair/run", `{"args": {"arg_a": [0, 0]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = service.RunResult{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.False(t, res.Valid)
	assert.Equal(t, "'return' has a int at index 0, but should be str.", res.Message)

	w = do(t, h, "POST", "/v1/contracts/missing/run", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "POST", "/v1/contracts/pair/run", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndInfo(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())

	w = do(t, h, "GET", "/info", "")
	assert.Contains(t, w.Body.String(), strings.TrimSpace(contract.Version))

	w = do(t, h, "OPTIONS", "/v1/check", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestViolations(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, "GET", "/v1/violations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	do(t, h, "POST", "/v1/contracts/pair/check", `{"args": [[4, 1, 1]]}`)
	do(t, h, "POST", "/v1/check", `{"name": "x", "annotation": "List[int]", "value": ["a"]}`)

	w = do(t, h, "GET", "/v1/violations?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0]["param"])
	assert.Equal(t, "'x' has a str at index 0, but should be int.", entries[0]["message"])

	w = do(t, h, "GET", "/v1/violations", "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "pair", entries[1]["function"])

	w = do(t, h, "GET", "/v1/violations?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViolations_NoJournal(t *testing.T) {
	svc, err := service.New(contract.New(), nil)
	require.NoError(t, err)
	h := NewHandler(svc, WithLogger(logging.NewNop()), WithGatherer(prometheus.NewRegistry()))

	w := do(t, h, "GET", "/v1/violations", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no violation journal configured")
}
