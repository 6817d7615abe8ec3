package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shipchat/shipchat/internal/dataset"
	"github.com/shipchat/shipchat/internal/llm"
	"github.com/shipchat/shipchat/internal/prompt"
)

type fakeCompletions struct {
	responses []string
	err       error
	errAt     int
	calls     []string
}

func (f *fakeCompletions) Complete(_ context.Context, p, _ string) (string, error) {
	call := len(f.calls)
	f.calls = append(f.calls, p)
	if f.err != nil && call == f.errAt {
		return "", f.err
	}
	if call < len(f.responses) {
		return f.responses[call], nil
	}
	return f.responses[len(f.responses)-1], nil
}

type fakeAuth struct {
	scoped dataset.Dataset
	user   string
	code   string
}

func (f *fakeAuth) Load(_ context.Context, raw string) (dataset.Dataset, string, string, error) {
	if !strings.Contains(raw, f.code) || f.code == "" {
		return dataset.Dataset{}, "", "", nil
	}
	return f.scoped, f.user, f.code, nil
}

type fakeExecutor struct {
	result dataset.Dataset
	err    error
	failN  int
	calls  []string
}

func (f *fakeExecutor) Execute(_ context.Context, sqlText string, _ dataset.Dataset) (dataset.Dataset, error) {
	f.calls = append(f.calls, sqlText)
	if f.err != nil && len(f.calls) <= f.failN {
		return dataset.Dataset{}, f.err
	}
	return f.result, nil
}

func testTemplate(t *testing.T) prompt.Template {
	t.Helper()
	tpl, err := prompt.Parse("Q: {user_question} U: {authenticated_user} C: {order_code}")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return tpl
}

func scopedOrders() dataset.Dataset {
	return dataset.Dataset{
		Columns: []string{"Codice", "Prodotto"},
		Rows: [][]any{
			{"1R2176985", "Lampada"},
			{"1R2500001", "Tavolo"},
		},
	}
}

func newService(completions *fakeCompletions, auth *fakeAuth, executor *fakeExecutor, t *testing.T) *Service {
	return &Service{
		Completions: completions,
		Auth:        auth,
		Executor:    executor,
		Template:    testTemplate(t),
	}
}

func authedSession(t *testing.T, svc *Service, registry *Registry) *Session {
	t.Helper()
	session := registry.Create(SessionOptions{Model: "llama3-70b-8192", MaxReflections: 5})
	result, err := svc.HandleTurn(context.Background(), session, "il mio codice è 1R2176985")
	if err != nil {
		t.Fatalf("login turn error = %v", err)
	}
	if result.Kind != TurnLogin || !session.Authenticated() {
		t.Fatalf("login failed: %#v", result)
	}
	return session
}

func TestLoginSuccessWelcomesUserByName(t *testing.T) {
	completions := &fakeCompletions{responses: []string{"unused"}}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	svc := newService(completions, auth, &fakeExecutor{}, t)
	registry := NewRegistry()

	session := registry.Create(SessionOptions{Model: "llama3-70b-8192", MaxReflections: 5})
	result, err := svc.HandleTurn(context.Background(), session, "ciao, 1R2176985")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !strings.Contains(result.Reply, "Maria Rossi") {
		t.Fatalf("welcome = %q", result.Reply)
	}
	if !session.Authenticated() {
		t.Fatal("session should be authenticated")
	}
	if len(completions.calls) != 0 {
		t.Fatalf("login must not call the model, calls = %d", len(completions.calls))
	}
	messages := session.Messages()
	if len(messages) != 3 || messages[0].Content != Greeting {
		t.Fatalf("history = %#v", messages)
	}
}

func TestLoginFailureLeavesSessionUnauthenticated(t *testing.T) {
	svc := newService(&fakeCompletions{responses: []string{"unused"}}, &fakeAuth{}, &fakeExecutor{}, t)
	registry := NewRegistry()

	session := registry.Create(SessionOptions{Model: "llama3-70b-8192", MaxReflections: 5})
	result, err := svc.HandleTurn(context.Background(), session, "nessun codice qui")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Reply != codeNotRecognized {
		t.Fatalf("reply = %q", result.Reply)
	}
	if session.Authenticated() {
		t.Fatal("session must stay in the login state")
	}
}

func TestQueryTurnProducesSummaryAndTable(t *testing.T) {
	completions := &fakeCompletions{responses: []string{
		`{"sql": "SELECT COUNT(*) FROM data.csv AS d"}`,
		"Hai effettuato 2 ordini per un totale di $170.",
	}}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	executor := &fakeExecutor{result: dataset.Dataset{Columns: []string{"count"}, Rows: [][]any{{int64(2)}}}}
	svc := newService(completions, auth, executor, t)
	session := authedSession(t, svc, NewRegistry())

	result, err := svc.HandleTurn(context.Background(), session, "quanti ordini ho fatto?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Kind != TurnData {
		t.Fatalf("kind = %v", result.Kind)
	}
	if result.Reflections != 0 {
		t.Fatalf("reflections = %d", result.Reflections)
	}
	if len(executor.calls) != 1 || !strings.Contains(executor.calls[0], "data.csv") {
		t.Fatalf("executor calls = %#v", executor.calls)
	}
	if !strings.Contains(result.Reply, `\$170`) {
		t.Fatalf("currency not escaped: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "<pre>") || !strings.Contains(result.Reply, "<table>") {
		t.Fatalf("reply missing rich parts: %q", result.Reply)
	}
	// initial completion + summarization
	if len(completions.calls) != 2 {
		t.Fatalf("completion calls = %d", len(completions.calls))
	}
}

func TestExplanationAcceptedImmediatelyWithoutReflection(t *testing.T) {
	completions := &fakeCompletions{responses: []string{
		`{"error": "Non posso rispondere a questa domanda con i dati disponibili."}`,
	}}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	executor := &fakeExecutor{}
	svc := newService(completions, auth, executor, t)
	session := authedSession(t, svc, NewRegistry())

	result, err := svc.HandleTurn(context.Background(), session, "che tempo fa?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Kind != TurnExplanation {
		t.Fatalf("kind = %v", result.Kind)
	}
	if result.Reflections != 0 {
		t.Fatalf("reflections = %d", result.Reflections)
	}
	if len(completions.calls) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(completions.calls))
	}
	if len(executor.calls) != 0 {
		t.Fatalf("executor should not run for explanations")
	}
}

func TestRepairLoopExhaustsExactlyMaxReflections(t *testing.T) {
	completions := &fakeCompletions{responses: []string{"not a decision at all"}}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	svc := newService(completions, auth, &fakeExecutor{}, t)
	session := authedSession(t, svc, NewRegistry())

	result, err := svc.HandleTurn(context.Background(), session, "domanda impossibile")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Kind != TurnExhausted {
		t.Fatalf("kind = %v", result.Kind)
	}
	if result.Reflections != 5 {
		t.Fatalf("reflections = %d, want exactly 5", result.Reflections)
	}
	// 1 initial + 5 reflections, never more
	if len(completions.calls) != 6 {
		t.Fatalf("completion calls = %d, want 6", len(completions.calls))
	}
	if !strings.Contains(result.Reply, "not a decision at all") {
		t.Fatalf("exhausted reply should carry the last raw response: %q", result.Reply)
	}
	for _, call := range completions.calls[1:] {
		if !strings.Contains(call, "Q: domanda impossibile") {
			t.Fatalf("reflection must embed the original prompt verbatim: %q", call)
		}
	}
}

func TestZeroReflectionBudgetFailsAfterFirstBadResponse(t *testing.T) {
	completions := &fakeCompletions{responses: []string{"garbage"}}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	svc := newService(completions, auth, &fakeExecutor{}, t)
	registry := NewRegistry()
	session := registry.Create(SessionOptions{Model: "llama3-70b-8192", MaxReflections: 0})
	if _, err := svc.HandleTurn(context.Background(), session, "1R2176985"); err != nil {
		t.Fatalf("login error = %v", err)
	}

	result, err := svc.HandleTurn(context.Background(), session, "domanda")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Kind != TurnExhausted || result.Reflections != 0 {
		t.Fatalf("result = %#v", result)
	}
	if len(completions.calls) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(completions.calls))
	}
}

func TestQueryFailureRecoversThroughReflection(t *testing.T) {
	completions := &fakeCompletions{responses: []string{
		`{"sql": "SELECT * FROM wrong_table"}`,
		`{"sql": "SELECT * FROM data.csv AS d"}`,
		"Ecco i tuoi ordini.",
	}}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	executor := &fakeExecutor{
		result: scopedOrders(),
		err:    errors.New("table wrong_table does not exist"),
		failN:  1,
	}
	svc := newService(completions, auth, executor, t)
	session := authedSession(t, svc, NewRegistry())

	result, err := svc.HandleTurn(context.Background(), session, "mostra i miei ordini")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Kind != TurnData {
		t.Fatalf("kind = %v", result.Kind)
	}
	if result.Reflections != 1 {
		t.Fatalf("reflections = %d", result.Reflections)
	}
	if len(executor.calls) != 2 {
		t.Fatalf("executor calls = %d", len(executor.calls))
	}
}

func TestTransportFailureAbortsTurnWithoutHistoryUpdate(t *testing.T) {
	completions := &fakeCompletions{
		responses: []string{"unused"},
		err:       &llm.StatusError{Status: 429},
		errAt:     0,
	}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	svc := newService(completions, auth, &fakeExecutor{}, t)
	session := authedSession(t, svc, NewRegistry())
	before := len(session.Messages())

	_, err := svc.HandleTurn(context.Background(), session, "quanti ordini?")
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if got := len(session.Messages()); got != before {
		t.Fatalf("history grew from %d to %d on transport failure", before, got)
	}
}

func TestUserFacingTransportMessageByCategory(t *testing.T) {
	cases := map[int]string{
		401: "autenticazione",
		429: "sovraccarico",
		500: "non è al momento disponibile",
		503: "non è al momento disponibile",
		418: "imprevisto",
	}
	for status, fragment := range cases {
		got := UserFacingTransportMessage(&llm.StatusError{Status: status})
		if !strings.Contains(got, fragment) {
			t.Fatalf("status %d message = %q, want fragment %q", status, got, fragment)
		}
	}
	if got := UserFacingTransportMessage(errors.New("dial tcp: timeout")); !strings.Contains(got, "imprevisto") {
		t.Fatalf("non-status message = %q", got)
	}
}

func TestEndToEndOrderCountScenario(t *testing.T) {
	completions := &fakeCompletions{responses: []string{
		`{"sql": "SELECT COUNT(*) FROM data.csv AS d"}`,
		"Hai effettuato 2 ordini in totale.",
	}}
	auth := &fakeAuth{scoped: scopedOrders(), user: "Maria Rossi", code: "1R2176985"}
	executor := &fakeExecutor{result: dataset.Dataset{Columns: []string{"count"}, Rows: [][]any{{int64(2)}}}}
	svc := newService(completions, auth, executor, t)
	registry := NewRegistry()

	session := registry.Create(SessionOptions{Model: "llama3-70b-8192", MaxReflections: 5})
	login, err := svc.HandleTurn(context.Background(), session, "1R2176985")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(login.Reply, "Maria Rossi") {
		t.Fatalf("welcome = %q", login.Reply)
	}

	result, err := svc.HandleTurn(context.Background(), session, "quanti ordini ho?")
	if err != nil {
		t.Fatalf("question error = %v", err)
	}
	if result.Kind != TurnData || result.Data.RowCount() != 1 {
		t.Fatalf("result = %#v", result)
	}
	if strings.TrimSpace(result.Reply) == "" {
		t.Fatal("summary reply must be non-empty")
	}
}
