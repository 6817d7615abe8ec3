package prompt

import (
	"strings"
	"testing"
)

func TestParseRequiresAllPlaceholders(t *testing.T) {
	if _, err := Parse("question: {user_question}, user: {authenticated_user}"); err == nil {
		t.Fatal("expected missing placeholder error")
	}
	if _, err := Parse("{user_question} {authenticated_user} {order_code}"); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
}

func TestRenderSubstitutesValues(t *testing.T) {
	tpl, err := Parse("Q={user_question} U={authenticated_user} C={order_code}")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := tpl.Render("how many orders?", "Maria Rossi", "1R2176985")
	want := "Q=how many orders? U=Maria Rossi C=1R2176985"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestReflectionEmbedsPromptAndResponse(t *testing.T) {
	got := Reflection("ORIGINAL PROMPT", "BAD RESPONSE")
	if !strings.Contains(got, "ORIGINAL PROMPT") {
		t.Fatal("reflection should embed the original prompt")
	}
	if !strings.Contains(got, "BAD RESPONSE") {
		t.Fatal("reflection should embed the failing response")
	}
	if !strings.Contains(got, "ONLY with the valid output format") {
		t.Fatal("reflection should restate the output contract")
	}
}

func TestSummaryAppendsContextOnlyWhenPresent(t *testing.T) {
	without := Summary("how many?", "Maria Rossi", "count\n3", "")
	if strings.Contains(without, "additional context") {
		t.Fatal("empty context should not be mentioned")
	}
	with := Summary("how many?", "Maria Rossi", "count\n3", "answer in Spanish")
	if !strings.Contains(with, "answer in Spanish") {
		t.Fatal("context should be appended verbatim")
	}
	if !strings.Contains(with, "Maria Rossi") {
		t.Fatal("summary should embed the identity")
	}
}
