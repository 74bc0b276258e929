package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openrouterx "github.com/openvend/vendsim/pkg/openrouter"
	catalogx "github.com/openvend/vendsim/sim/catalog"
	contractx "github.com/openvend/vendsim/sim/contract"
	executorx "github.com/openvend/vendsim/sim/executor"
	gatewayx "github.com/openvend/vendsim/sim/gateway"
	orchestratorx "github.com/openvend/vendsim/sim/orchestrator"
	statex "github.com/openvend/vendsim/sim/state"
	inmemx "github.com/openvend/vendsim/store/inmem"
)

type scriptedCompleter struct {
	text string
}

func (s scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return s.text, nil
}

// upstream fakes both the completion and model-listing endpoints.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"test-model"}]}`)
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"cmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"hello"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, store *inmemx.Store) *Server {
	t.Helper()

	srv := upstream(t)
	cfg := openrouterx.Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.5,
		Timeout:     5 * time.Second,
	}

	gw := gatewayx.New(cfg, "secret", store)
	catalog := catalogx.NewProvider(store)
	executor := executorx.New(store, store, catalog).WithChance(func() float64 { return 0.99 })
	reader := statex.NewReader(store, store, store)

	orch, err := orchestratorx.New(
		reader, catalog, executor, store, store,
		scriptedCompleter{text: "Action: DO_NOTHING"},
		scriptedCompleter{text: "REQUEST: anything on sale?"},
		orchestratorx.Config{MaxSteps: 10},
	)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	chat := gatewayx.NewChatService(gw, store)
	models := openrouterx.NewModelsClient(cfg)

	return New(Config{}, store, orch, executor, chat, models)
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestInventoryEmptyReturnsNotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/vending/inventory", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No items found in inventory") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestInventoryListsItems(t *testing.T) {
	t.Parallel()

	store := inmemx.New()
	store.SeedInventory(contractx.InventoryItem{ProductName: "Gum", QuantityInStock: 4, RetailPrice: 0.5})
	srv := newTestServer(t, store)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/vending/inventory", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Inventory []contractx.InventoryItem `json:"inventory"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Inventory) != 1 || payload.Inventory[0].ProductName != "Gum" {
		t.Fatalf("inventory = %+v", payload.Inventory)
	}
}

func TestBalance(t *testing.T) {
	t.Parallel()

	store := inmemx.New()
	store.SetBalance(42.5)
	srv := newTestServer(t, store)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/vending/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Balance != 42.5 {
		t.Fatalf("balance = %v, want 42.5", payload.Balance)
	}
}

func TestTransactionsRejectsBadLimit(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	for _, limit := range []string{"0", "-3", "abc"} {
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/vending/transactions?limit="+limit, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: status = %d, want 400", limit, rec.Code)
		}
	}
}

func TestPurchase(t *testing.T) {
	t.Parallel()

	store := inmemx.New()
	store.SeedInventory(
		contractx.InventoryItem{ProductName: "Gum", QuantityInStock: 2, RetailPrice: 0.5},
		contractx.InventoryItem{ProductName: "Pretzels", QuantityInStock: 0, RetailPrice: 0.9},
	)
	srv := newTestServer(t, store)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/vending/purchase", purchaseRequest{Item: "Gum"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Message string  `json:"message"`
		Item    string  `json:"item"`
		Price   float64 `json:"price"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Message != "Purchase successful" || payload.Item != "Gum" || payload.Price != 0.5 {
		t.Fatalf("payload = %+v", payload)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/vending/purchase", purchaseRequest{Item: "Caviar"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown item: status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/vending/purchase", purchaseRequest{Item: "Pretzels"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out of stock: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/vending/purchase", purchaseRequest{Item: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank item: status = %d, want 400", rec.Code)
	}
}

func TestSimulationLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/simulations/", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: status = %d, want 201; body = %s", rec.Code, rec.Body.String())
	}
	var sim contractx.Simulation
	if err := json.Unmarshal(rec.Body.Bytes(), &sim); err != nil {
		t.Fatalf("decode simulation: %v", err)
	}
	if sim.ID == "" || sim.Status != contractx.SimulationRunning {
		t.Fatalf("simulation = %+v", sim)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/simulations/"+sim.ID+"/step", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("step: status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var result contractx.StepResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode step result: %v", err)
	}
	if result.CustomerRequest != "REQUEST: anything on sale?" {
		t.Fatalf("step result = %+v", result)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/simulations/"+sim.ID+"/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs: status = %d, want 200", rec.Code)
	}
	var logs struct {
		Logs []contractx.SimulationLogEntry `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(logs.Logs) != 2 {
		t.Fatalf("got %d log entries, want 2 (one per agent turn)", len(logs.Logs))
	}
}

func TestStepUnknownSimulation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/simulations/nope/step", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestModelsPassthrough(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "test-model") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestChatStreamsServerSentEvents(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", gatewayx.ChatRequest{
		ChatID: "chat-1",
		Prompt: "How is business?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", got)
	}

	var dataLines []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(dataLines) == 0 || dataLines[len(dataLines)-1] != "[DONE]" {
		t.Fatalf("data lines = %v, want fragments terminated by [DONE]", dataLines)
	}
	if dataLines[0] != "hello" {
		t.Fatalf("first fragment = %q, want %q", dataLines[0], "hello")
	}
}

func TestChatValidationError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, inmemx.New())
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", gatewayx.ChatRequest{Prompt: "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}
}
