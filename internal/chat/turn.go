package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shipchat/shipchat/internal/dataset"
	"github.com/shipchat/shipchat/internal/decision"
	"github.com/shipchat/shipchat/internal/engine"
	"github.com/shipchat/shipchat/internal/llm"
	"github.com/shipchat/shipchat/internal/observability"
	"github.com/shipchat/shipchat/internal/prompt"
)

// Authenticator resolves login text into a scoped dataset, display name and
// normalized code. A not-found code returns an empty dataset without error.
type Authenticator interface {
	Load(ctx context.Context, rawText string) (dataset.Dataset, string, string, error)
}

// Service orchestrates one user turn: prompt rendering, completion, parsing,
// execution, reflection on failure, and summarization.
type Service struct {
	Logger      *slog.Logger
	Completions llm.Client
	Auth        Authenticator
	Executor    engine.Executor
	Template    prompt.Template
}

type TurnKind int

const (
	// TurnData is a successful query turn: SQL ran and produced a table.
	TurnData TurnKind = iota
	// TurnExplanation is a model-declared inability to answer with SQL,
	// accepted as-is without retry.
	TurnExplanation
	// TurnExhausted means the reflection budget ran out.
	TurnExhausted
	// TurnLogin covers both login outcomes, success and failure.
	TurnLogin
)

// TurnResult is the explicit outcome of a turn. Callers pattern-match on
// Kind instead of catching errors.
type TurnResult struct {
	Kind         TurnKind
	Reply        string
	SQL          string
	Data         dataset.Dataset
	Reflections  int
	LastResponse string
}

// HandleTurn processes one user message start to finish. Transport failures
// from the completion provider return an error and leave the conversation
// history untouched for this turn; every other outcome appends both the user
// message and the assistant reply.
func (s *Service) HandleTurn(ctx context.Context, session *Session, userText string) (TurnResult, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	ctx = observability.ContextWithSessionID(ctx, session.ID)

	if !session.authenticated {
		result, err := s.login(ctx, session, userText)
		if err != nil {
			return TurnResult{}, err
		}
		session.append(RoleUser, userText)
		session.append(RoleAssistant, result.Reply)
		return result, nil
	}

	fullPrompt := s.Template.Render(userText, session.user, session.code)
	loop, err := s.runRepairLoop(ctx, fullPrompt, session.Model, session.MaxReflections, session.scoped)
	if err != nil {
		return TurnResult{}, err
	}

	var reply string
	switch loop.Kind {
	case TurnData:
		reply, err = s.composeDataReply(ctx, session, userText, loop)
		if err != nil {
			return TurnResult{}, err
		}
		observability.ObserveTurn("data", loop.Reflections)
	case TurnExplanation:
		reply = loop.Reply
		observability.ObserveTurn("explanation", loop.Reflections)
	case TurnExhausted:
		reply = fmt.Sprintf("ERROR: Could not generate valid SQL for this question. Last model response: %s", loop.LastResponse)
		observability.ObserveTurn("exhausted", loop.Reflections)
		observability.IncrementReflectionExhausted()
	}

	loop.Reply = reply
	session.append(RoleUser, userText)
	session.append(RoleAssistant, reply)
	return loop, nil
}

func (s *Service) login(ctx context.Context, session *Session, userText string) (TurnResult, error) {
	scoped, user, code, err := s.Auth.Load(ctx, userText)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load scoped dataset: %w", err)
	}

	found := !scoped.Empty()
	observability.ObserveLoginAttempt(found)
	if !found {
		return TurnResult{Kind: TurnLogin, Reply: codeNotRecognized}, nil
	}

	session.authenticated = true
	session.user = user
	session.code = code
	session.scoped = scoped
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "session authenticated",
			slog.Int("scoped_rows", scoped.RowCount()),
		)
	}
	return TurnResult{
		Kind:  TurnLogin,
		Reply: "Benvenuti, " + user + "! Chiedi pure qualcosa sui tuoi ordini.",
	}, nil
}

// runRepairLoop drives Init -> Responded -> (Done | Failed). A parse failure
// and a query failure are the same signal: reflect and retry. The original
// rendered prompt is embedded verbatim in every reflection; only the
// offending response changes. At most maxReflections additional completion
// calls happen per turn.
func (s *Service) runRepairLoop(ctx context.Context, fullPrompt, model string, maxReflections int, scoped dataset.Dataset) (TurnResult, error) {
	response, err := s.Completions.Complete(ctx, fullPrompt, model)
	if err != nil {
		return TurnResult{}, err
	}

	reflections := 0
	for {
		dec, parseErr := decision.Parse(response)
		if parseErr == nil {
			switch dec.Kind {
			case decision.KindExplanation:
				return TurnResult{
					Kind:        TurnExplanation,
					Reply:       dec.Message,
					Reflections: reflections,
				}, nil
			case decision.KindQuery:
				data, execErr := s.Executor.Execute(ctx, dec.SQL, scoped)
				if execErr == nil {
					return TurnResult{
						Kind:        TurnData,
						SQL:         dec.SQL,
						Data:        data,
						Reflections: reflections,
					}, nil
				}
				if s.Logger != nil {
					s.Logger.DebugContext(ctx, "query execution failed",
						slog.String("error", execErr.Error()),
						slog.Int("reflections", reflections),
					)
				}
			}
		}

		if reflections >= maxReflections {
			return TurnResult{
				Kind:         TurnExhausted,
				Reflections:  reflections,
				LastResponse: response,
			}, nil
		}

		response, err = s.Completions.Complete(ctx, prompt.Reflection(fullPrompt, response), model)
		if err != nil {
			return TurnResult{}, err
		}
		reflections++
	}
}

// composeDataReply summarizes the result and renders the SQL and table as
// rich text. A rendering failure is replaced with a generic message so the
// session survives.
func (s *Service) composeDataReply(ctx context.Context, session *Session, userText string, loop TurnResult) (string, error) {
	summary, err := s.Completions.Complete(ctx,
		prompt.Summary(userText, session.user, loop.Data.RenderText(), session.SummaryContext),
		session.Model,
	)
	if err != nil {
		return "", err
	}

	tableHTML, err := loop.Data.RenderHTML()
	if err != nil {
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "result rendering failed", slog.String("error", err.Error()))
		}
		return "ERROR: Could not generate a valid response for this question.", nil
	}

	reply := fmt.Sprintf("%s<br><p><b>SQL Query:</b><pre>%s</pre></p><p><b>Resulting Data:</b><br>%s</p>",
		summary, loop.SQL, tableHTML)
	// keep currency symbols from being read as formatting directives
	return strings.ReplaceAll(reply, "$", `\$`), nil
}

// UserFacingTransportMessage maps completion provider failures to distinct,
// category-specific messages. These are the only provider errors that reach
// the user; they are never retried by the repair loop.
func UserFacingTransportMessage(err error) string {
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		return "Errore imprevisto nel servizio di generazione. Riprova più tardi."
	}
	switch statusErr.Status {
	case 401:
		return "Errore di autenticazione verso il servizio di generazione. Contatta l'assistenza."
	case 429:
		return "Il servizio di generazione è momentaneamente sovraccarico. Riprova tra qualche istante."
	case 500, 503:
		return "Il servizio di generazione non è al momento disponibile. Riprova più tardi."
	default:
		return "Errore imprevisto nel servizio di generazione. Riprova più tardi."
	}
}
