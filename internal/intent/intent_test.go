package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/intent"
)

func TestClassifyPriority(t *testing.T) {
	cases := []struct {
		text   string
		intent intent.Intent
		action intent.Action
	}{
		{"add todo buy milk", intent.Todo, intent.TodoAdd},
		{"list my tasks", intent.Todo, intent.TodoList},
		{"execute command ls -la", intent.Agent, intent.AgentCommand},
		{"run the todo sweep", intent.Todo, intent.TodoHelp},
		{"take a screenshot", intent.Desktop, intent.DesktopScreenshot},
		{"show desktop vnc connection", intent.Desktop, intent.DesktopVNC},
		{"start desktop", intent.Desktop, intent.DesktopStart},
		{"xfce", intent.Desktop, intent.DesktopHelp},
		{"search python tutorials", intent.WebSearch, intent.WebQuery},
		{"browse around", intent.WebSearch, intent.WebHelp},
		{"what time is it in jst", intent.Remote, intent.RemoteTime},
		{"think about prime numbers", intent.Remote, intent.RemoteThink},
		{"screenshot website https://example.com", intent.Remote, intent.RemoteScreenshot},
		{"hello there", intent.Fallback, intent.ChatGreeting},
		{"help", intent.Fallback, intent.ChatHelp},
		{"status", intent.Fallback, intent.ChatStatus},
		{"nice weather", intent.Fallback, intent.ChatAcknowledge},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			res := intent.Classify(tc.text)
			assert.Equal(t, tc.intent, res.Intent)
			assert.Equal(t, tc.action, res.Action)
		})
	}
}

func TestClassifyAlwaysOneOfSix(t *testing.T) {
	valid := map[intent.Intent]bool{
		intent.Todo: true, intent.Agent: true, intent.Desktop: true,
		intent.WebSearch: true, intent.Remote: true, intent.Fallback: true,
	}
	inputs := []string{"", " ", "??", "12345", "İstanbul what is", "ééé todo", "\x00\xff", "https://", "cathodoscreenshot"}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			res := intent.Classify(in)
			assert.True(t, valid[res.Intent], "input %q gave %q", in, res.Intent)
			assert.NotEmpty(t, res.Action)
		})
	}
}

func TestTodoExtraction(t *testing.T) {
	res := intent.Classify("add todo buy milk")
	assert.Equal(t, "buy milk", res.Params.Title)
	assert.Empty(t, res.Guidance)

	res = intent.Classify("Create Todo  call mom ")
	assert.Equal(t, "call mom", res.Params.Title)

	res = intent.Classify("add todo")
	assert.Equal(t, intent.TodoAdd, res.Action)
	assert.Equal(t, intent.NeedTodoTitle, res.Guidance)

	res = intent.Classify("complete todo 7")
	assert.Equal(t, intent.TodoComplete, res.Action)
	assert.EqualValues(t, 7, res.Params.ID)

	res = intent.Classify("done with task 12 and 13")
	assert.EqualValues(t, 12, res.Params.ID)

	res = intent.Classify("complete todo")
	assert.Equal(t, intent.NeedTodoID, res.Guidance)

	res = intent.Classify("delete todo 3")
	assert.Equal(t, intent.TodoDelete, res.Action)
	assert.EqualValues(t, 3, res.Params.ID)

	res = intent.Classify("complete todo 99999999999999999999999")
	assert.Equal(t, intent.NeedTodoID, res.Guidance)
}

func TestAgentExtraction(t *testing.T) {
	res := intent.Classify("execute command ls -la")
	assert.Equal(t, "ls -la", res.Params.Command)

	res = intent.Classify("Run Command echo hi")
	assert.Equal(t, "echo hi", res.Params.Command)

	res = intent.Classify("execute command")
	assert.Equal(t, intent.NeedCommand, res.Guidance)

	assert.Equal(t, intent.AgentFileHelp, intent.Classify("run file ops").Action)
	assert.Equal(t, intent.AgentHelp, intent.Classify("run").Action)
}

func TestWebExtraction(t *testing.T) {
	res := intent.Classify("search python tutorials")
	assert.Equal(t, intent.WebSearch, res.Intent)
	assert.Equal(t, "python tutorials", res.Params.Query)

	res = intent.Classify("search")
	assert.Equal(t, intent.WebSearch, res.Intent)
	assert.Equal(t, intent.NeedSearchQuery, res.Guidance)
}

func TestRemoteExtraction(t *testing.T) {
	assert.Equal(t, "UTC", intent.Classify("what's the time").Params.Timezone)
	assert.Equal(t, "PST", intent.Classify("time in PST please").Params.Timezone)
	assert.Equal(t, "CET", intent.Classify("date cet").Params.Timezone)
	// whole words only: "best" must not match "est"
	assert.Equal(t, "UTC", intent.Classify("best time").Params.Timezone)

	res := intent.Classify("think about prime numbers")
	assert.Equal(t, "prime numbers", res.Params.Problem)

	res = intent.Classify("analyze")
	assert.Equal(t, intent.DefaultProblem, res.Params.Problem)

	res = intent.Classify("screenshot website https://example.com")
	assert.Equal(t, "https://example.com", res.Params.URL)

	res = intent.Classify("screenshot web page please")
	assert.Equal(t, intent.RemoteScreenshot, res.Action)
	assert.Equal(t, intent.NeedURL, res.Guidance)

	res = intent.Classify("screenshot page http://a.test/x?y=1 and http://b.test")
	assert.Equal(t, "http://a.test/x?y=1", res.Params.URL)
}

func TestFallbackKeepsText(t *testing.T) {
	res := intent.Classify("Nice Weather")
	assert.Equal(t, intent.Fallback, res.Intent)
	assert.Equal(t, "Nice Weather", res.Params.Text)
}

func TestRulesOrder(t *testing.T) {
	var got []intent.Intent
	for _, r := range intent.Rules() {
		got = append(got, r.Intent)
	}
	assert.Equal(t, []intent.Intent{intent.Todo, intent.Agent, intent.Desktop, intent.WebSearch, intent.Remote}, got)
}
