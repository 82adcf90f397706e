package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"analytics-intake/internal/domain"
	"analytics-intake/internal/submission"
)

// ErrStateContention is returned when Update lost every compare-and-swap attempt.
var ErrStateContention = errors.New("repository: conversation state contention")

var _ submission.Store = (*Client)(nil)

// storedState is a decoded STATE# item. version is kept even for expired
// items so the next write still conditions on it.
type storedState struct {
	state   *domain.ConversationState
	version int64
	exists  bool
}

// Update implements submission.Store. Each attempt reads the item with a
// consistent read, applies fn, and writes the result conditioned on the
// version it read. A lost race re-reads and calls fn again.
func (c *Client) Update(ctx context.Context, conversationID string, fn submission.UpdateFunc) error {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur, err := c.loadState(ctx, conversationID)
		if err != nil {
			return err
		}

		next := fn(cur.state.Clone())
		switch {
		case next == nil && !cur.exists:
			return nil
		case next == nil:
			err = c.deleteState(ctx, conversationID, cur.version)
		case cur.state != nil && sameState(cur.state, next):
			return nil
		default:
			next.ConversationID = conversationID
			err = c.putState(ctx, next, cur)
		}
		if err == nil {
			return nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return err
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrStateContention, conversationID, c.maxAttempts)
}

func stateKey(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

func (c *Client) loadState(ctx context.Context, conversationID string) (storedState, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            stateKey(conversationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return storedState{}, fmt.Errorf("repository: Update get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return storedState{}, nil
	}

	version, err := intAttr(out.Item, "version")
	if err != nil {
		return storedState{}, fmt.Errorf("repository: Update decode version: %w", err)
	}
	cur := storedState{version: version, exists: true}

	// DynamoDB deletes expired items lazily, so an expired item may still be read.
	if ttl, err := intAttr(out.Item, "ttl"); err == nil && ttl <= c.now().Unix() {
		return cur, nil
	}

	state, err := itemToState(out.Item)
	if err != nil {
		return storedState{}, fmt.Errorf("repository: Update decode state: %w", err)
	}
	cur.state = state
	return cur, nil
}

func (c *Client) putState(ctx context.Context, next *domain.ConversationState, cur storedState) error {
	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      c.stateItem(next, cur.version+1),
	}
	if cur.exists {
		in.ConditionExpression = aws.String("version = :v")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{":v": numAttr(cur.version)}
	} else {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	}
	if _, err := c.api.PutItem(ctx, in); err != nil {
		return fmt.Errorf("repository: Update put item: %w", err)
	}
	return nil
}

func (c *Client) deleteState(ctx context.Context, conversationID string, version int64) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       stateKey(conversationID),
		ConditionExpression:       aws.String("version = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": numAttr(version)},
	})
	if err != nil {
		return fmt.Errorf("repository: Update delete item: %w", err)
	}
	return nil
}

func (c *Client) stateItem(s *domain.ConversationState, version int64) map[string]types.AttributeValue {
	artifacts := make([]types.AttributeValue, 0, len(s.Artifacts))
	for _, a := range s.Artifacts {
		artifacts = append(artifacts, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"filename":    &types.AttributeValueMemberS{Value: a.Filename},
			"url":         &types.AttributeValueMemberS{Value: a.URL},
			"contentType": &types.AttributeValueMemberS{Value: a.ContentType},
		}})
	}
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(s.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: skState},
		"conversationId": &types.AttributeValueMemberS{Value: s.ConversationID},
		"format":         &types.AttributeValueMemberS{Value: string(s.Format)},
		"artifacts":      &types.AttributeValueMemberL{Value: artifacts},
		"version":        numAttr(version),
		"ttl":            numAttr(c.now().Add(c.stateTTL).Unix()),
	}
}

func itemToState(item map[string]types.AttributeValue) (*domain.ConversationState, error) {
	id, err := strAttr(item, "conversationId")
	if err != nil {
		return nil, err
	}
	format, err := strAttr(item, "format")
	if err != nil {
		return nil, err
	}
	if !domain.SourceFormat(format).Valid() {
		return nil, fmt.Errorf("repository: unknown format %q", format)
	}
	state := &domain.ConversationState{ConversationID: id, Format: domain.SourceFormat(format)}

	raw, ok := item["artifacts"]
	if !ok {
		return state, nil
	}
	list, ok := raw.(*types.AttributeValueMemberL)
	if !ok {
		return nil, errors.New("repository: attribute \"artifacts\" is not a list")
	}
	for i, v := range list.Value {
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("repository: artifact %d is not a map", i)
		}
		url, err := strAttr(m.Value, "url")
		if err != nil {
			return nil, err
		}
		filename, _ := strAttr(m.Value, "filename")       // allow empty
		contentType, _ := strAttr(m.Value, "contentType") // allow empty
		state.Artifacts = append(state.Artifacts, domain.Artifact{Filename: filename, URL: url, ContentType: contentType})
	}
	return state, nil
}

func sameState(a, b *domain.ConversationState) bool {
	if a.Format != b.Format || len(a.Artifacts) != len(b.Artifacts) {
		return false
	}
	for i := range a.Artifacts {
		if a.Artifacts[i] != b.Artifacts[i] {
			return false
		}
	}
	return true
}
