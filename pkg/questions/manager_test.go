package questions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmOptions() []QuestionOption {
	return []QuestionOption{
		{Label: "Да, применить", Description: "Переместить 5 файлов"},
		{Label: "Нет", Description: "Отменить план"},
	}
}

func TestCreateQuestion_Validation(t *testing.T) {
	qm := NewQuestionManager(2, time.Second)

	_, err := qm.CreateQuestion("", confirmOptions())
	require.Error(t, err)

	_, err = qm.CreateQuestion("Вопрос?", nil)
	require.Error(t, err)

	// Больше maxOptions
	_, err = qm.CreateQuestion("Вопрос?", []QuestionOption{
		{Label: "a"}, {Label: "b"}, {Label: "c"},
	})
	require.Error(t, err)

	id, err := qm.CreateQuestion("Применить план?", confirmOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, qm.HasPendingQuestions())
}

func TestSubmitAnswer_UnblocksWaiter(t *testing.T) {
	qm := NewQuestionManager(10, 5*time.Second)

	id, err := qm.CreateQuestion("Применить план?", confirmOptions())
	require.NoError(t, err)

	done := make(chan QuestionResult, 1)
	go func() {
		result, err := qm.WaitForAnswer(context.Background(), id)
		require.NoError(t, err)
		done <- result
	}()

	// Даем горутине встать в select
	require.Eventually(t, func() bool {
		return qm.GetFirstPendingID() == id
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, qm.SubmitAnswer(id, QuestionAnswer{Index: 0}))

	result := <-done
	assert.True(t, result.Answered())
	assert.Equal(t, 0, result.Index)
	// Label и Description подставлены из опции
	assert.Equal(t, "Да, применить", result.Label)
	assert.Equal(t, "Переместить 5 файлов", result.Description)

	// Вопрос очищен после ответа
	assert.False(t, qm.HasPendingQuestions())
}

func TestSubmitAnswer_InvalidIndex(t *testing.T) {
	qm := NewQuestionManager(10, time.Second)
	id, err := qm.CreateQuestion("?", confirmOptions())
	require.NoError(t, err)

	require.Error(t, qm.SubmitAnswer(id, QuestionAnswer{Index: 5}))
	require.Error(t, qm.SubmitAnswer(id, QuestionAnswer{Index: -1}))
	require.Error(t, qm.SubmitAnswer("missing", QuestionAnswer{Index: 0}))
}

func TestWaitForAnswer_Timeout(t *testing.T) {
	qm := NewQuestionManager(10, 50*time.Millisecond)
	id, err := qm.CreateQuestion("?", confirmOptions())
	require.NoError(t, err)

	result, err := qm.WaitForAnswer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "timeout", result.Status)
	assert.False(t, qm.HasPendingQuestions())
}

func TestWaitForAnswer_ContextCancel(t *testing.T) {
	qm := NewQuestionManager(10, time.Minute)
	id, err := qm.CreateQuestion("?", confirmOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := qm.WaitForAnswer(ctx, id)
	require.Error(t, err)
	assert.Equal(t, "cancelled", result.Status)
}

func TestCancel(t *testing.T) {
	qm := NewQuestionManager(10, time.Minute)
	id, err := qm.CreateQuestion("?", confirmOptions())
	require.NoError(t, err)

	qm.Cancel(id, "user_interrupt")

	result, err := qm.WaitForAnswer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", result.Status)
	assert.Equal(t, "user_interrupt", result.Error)
}

func TestGetQuestion(t *testing.T) {
	qm := NewQuestionManager(10, time.Minute)
	id, err := qm.CreateQuestion("Применить план?", confirmOptions())
	require.NoError(t, err)

	pq, ok := qm.GetQuestion(id)
	require.True(t, ok)
	assert.Equal(t, "Применить план?", pq.Question)
	assert.Len(t, pq.Options, 2)

	_, ok = qm.GetQuestion("missing")
	assert.False(t, ok)
}

func TestQuestionResult_ToJSONString(t *testing.T) {
	result := NewAnsweredResult(QuestionAnswer{Index: 1, Label: "Нет", Timestamp: time.Now()})
	s := result.ToJSONString()
	assert.Contains(t, s, `"status":"answered"`)
	assert.Contains(t, s, `"selected_index":1`)
	assert.Contains(t, s, `"selected_label":"Нет"`)
}
