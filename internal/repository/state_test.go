package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/submission"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func clockAt(ts time.Time) Option {
	return withClock(func() time.Time { return ts })
}

func set(s *domain.ConversationState) submission.UpdateFunc {
	return func(*domain.ConversationState) *domain.ConversationState { return s }
}

func TestUpdate_CreateReadDelete(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db, clockAt(fixedNow))
	ctx := context.Background()

	err := c.Update(ctx, "abc", set(&domain.ConversationState{
		Format:    domain.FormatInstagram,
		Artifacts: []domain.Artifact{{Filename: "1.png", URL: "https://cdn.test/1.png", ContentType: "image/png"}},
	}))
	require.NoError(t, err)
	require.Equal(t, "attribute_not_exists(PK)", *db.lastPutInput.ConditionExpression)
	item := db.items["CONV#abc|STATE#"]
	require.Equal(t, "1", item["version"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "1795003200", item["ttl"].(*types.AttributeValueMemberN).Value)

	var seen *domain.ConversationState
	err = c.Update(ctx, "abc", func(cur *domain.ConversationState) *domain.ConversationState {
		seen = cur
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "abc", seen.ConversationID)
	require.Equal(t, domain.FormatInstagram, seen.Format)
	require.Equal(t, []domain.Artifact{{Filename: "1.png", URL: "https://cdn.test/1.png", ContentType: "image/png"}}, seen.Artifacts)
	require.Empty(t, db.items)
}

func TestUpdate_AbsentAndNilWritesNothing(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	require.NoError(t, c.Update(context.Background(), "abc", set(nil)))
	require.Zero(t, db.puts)
	require.Zero(t, db.deletes)
}

func TestUpdate_UnchangedStateSkipsWrite(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	ctx := context.Background()
	require.NoError(t, c.Update(ctx, "abc", set(&domain.ConversationState{Format: domain.FormatYouTube})))

	require.NoError(t, c.Update(ctx, "abc", func(cur *domain.ConversationState) *domain.ConversationState { return cur }))
	require.Equal(t, 1, db.puts)
}

func TestUpdate_BumpsVersion(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	ctx := context.Background()
	require.NoError(t, c.Update(ctx, "abc", set(&domain.ConversationState{Format: domain.FormatInstagram})))
	require.NoError(t, c.Update(ctx, "abc", func(cur *domain.ConversationState) *domain.ConversationState {
		cur.Artifacts = append(cur.Artifacts, domain.Artifact{URL: "u1"})
		return cur
	}))
	require.Equal(t, "version = :v", *db.lastPutInput.ConditionExpression)
	require.Equal(t, "2", db.items["CONV#abc|STATE#"]["version"].(*types.AttributeValueMemberN).Value)
}

func TestUpdate_RetriesOnConflict(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db)
	ctx := context.Background()
	require.NoError(t, c.Update(ctx, "abc", set(&domain.ConversationState{Format: domain.FormatInstagram})))

	// A competing writer appends an artifact between our read and our write.
	db.beforeWrite = func() {
		require.NoError(t, c.Update(ctx, "abc", func(cur *domain.ConversationState) *domain.ConversationState {
			cur.Artifacts = append(cur.Artifacts, domain.Artifact{URL: "other"})
			return cur
		}))
	}

	calls := 0
	err := c.Update(ctx, "abc", func(cur *domain.ConversationState) *domain.ConversationState {
		calls++
		cur.Artifacts = append(cur.Artifacts, domain.Artifact{URL: "mine"})
		return cur
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	state, err := itemToState(db.items["CONV#abc|STATE#"])
	require.NoError(t, err)
	require.Equal(t, []domain.Artifact{{URL: "other"}, {URL: "mine"}}, state.Artifacts)
}

func TestUpdate_GivesUpAfterMaxAttempts(t *testing.T) {
	db := newFakeDynamo()
	c := mustNewClient(t, db, WithMaxAttempts(2))
	ctx := context.Background()
	require.NoError(t, c.Update(ctx, "abc", set(&domain.ConversationState{Format: domain.FormatTikTok})))

	bumped := int64(10)
	var competing func()
	competing = func() {
		bumped++
		db.items["CONV#abc|STATE#"]["version"] = numAttr(bumped)
		db.beforeWrite = competing
	}
	db.beforeWrite = competing

	err := c.Update(ctx, "abc", set(nil))
	require.ErrorIs(t, err, ErrStateContention)
}

func TestUpdate_ExpiredStateIsAbsent(t *testing.T) {
	db := newFakeDynamo()
	ctx := context.Background()
	old := mustNewClient(t, db, clockAt(fixedNow.Add(-40*24*time.Hour)))
	require.NoError(t, old.Update(ctx, "abc", set(&domain.ConversationState{Format: domain.FormatTikTok})))

	c := mustNewClient(t, db, clockAt(fixedNow))
	var seen *domain.ConversationState
	err := c.Update(ctx, "abc", func(cur *domain.ConversationState) *domain.ConversationState {
		seen = cur
		return &domain.ConversationState{Format: domain.FormatYouTube}
	})
	require.NoError(t, err)
	require.Nil(t, seen)
	require.Equal(t, "version = :v", *db.lastPutInput.ConditionExpression)
	require.Equal(t, "2", db.items["CONV#abc|STATE#"]["version"].(*types.AttributeValueMemberN).Value)
}

func TestUpdate_GetItemError(t *testing.T) {
	db := newFakeDynamo()
	db.getErr = errors.New("boom")
	c := mustNewClient(t, db)
	err := c.Update(context.Background(), "abc", set(nil))
	require.ErrorContains(t, err, "get item")
}

func TestUpdate_PutErrorIsNotRetried(t *testing.T) {
	db := newFakeDynamo()
	db.putErr = errors.New("ProvisionedThroughputExceededException")
	c := mustNewClient(t, db)
	err := c.Update(context.Background(), "abc", set(&domain.ConversationState{Format: domain.FormatTikTok}))
	require.ErrorContains(t, err, "put item")
	require.Equal(t, 1, db.puts)
}

func TestUpdate_CanceledContext(t *testing.T) {
	c := mustNewClient(t, newFakeDynamo())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Update(ctx, "abc", set(nil))
	require.ErrorIs(t, err, context.Canceled)
}

func TestUpdate_MachineDispatchesOnce(t *testing.T) {
	c := mustNewClient(t, newFakeDynamo())
	next, d := submission.Transition(nil, submission.Declaration("tiktok"))
	require.Equal(t, submission.OutcomeDeclared, d.Outcome)
	ctx := context.Background()
	require.NoError(t, c.Update(ctx, "abc", set(next)))

	dispatched := 0
	for i := 0; i < 2; i++ {
		err := c.Update(ctx, "abc", func(cur *domain.ConversationState) *domain.ConversationState {
			n, d := submission.Transition(cur, submission.Arrival(domain.Artifact{Filename: "a.png", URL: "u"}))
			if d.Outcome == submission.OutcomeDispatched {
				dispatched++
			}
			return n
		})
		require.NoError(t, err)
	}
	require.Equal(t, 1, dispatched)
}

func TestItemToState_MalformedArtifacts(t *testing.T) {
	item := map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: "abc"},
		"format":         &types.AttributeValueMemberS{Value: "TikTok"},
		"artifacts":      &types.AttributeValueMemberS{Value: "nope"},
	}
	_, err := itemToState(item)
	require.ErrorContains(t, err, "not a list")
}

func TestItemToState_UnknownFormat(t *testing.T) {
	for _, format := range []string{"", "Snapchat", "tiktok"} {
		item := map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: "abc"},
			"format":         &types.AttributeValueMemberS{Value: format},
		}
		_, err := itemToState(item)
		require.Error(t, err, "format=%q", format)
	}

	item := map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: "abc"},
		"format":         &types.AttributeValueMemberS{Value: "Instagram"},
	}
	state, err := itemToState(item)
	require.NoError(t, err)
	require.Equal(t, domain.FormatInstagram, state.Format)
}
