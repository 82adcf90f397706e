package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"analytics-intake/internal/domain"
)

// Record appends a completed submission to the ledger partition of its month.
func (c *Client) Record(ctx context.Context, s domain.Submission) error {
	if s.ID == "" {
		return errors.New("repository: Record: submission id is required")
	}
	if s.SubmittedAt.IsZero() {
		return errors.New("repository: Record: submission time is required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                submissionItem(s),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

// ListPeriod returns every submission recorded in period (YYYY-MM), oldest first.
func (c *Client) ListPeriod(ctx context.Context, period string) ([]domain.Submission, error) {
	if _, err := time.Parse("2006-01", period); err != nil {
		return nil, fmt.Errorf("repository: ListPeriod: invalid period %q", period)
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: periodPK(period)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixSub},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var subs []domain.Submission
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPeriod query: %w", err)
		}
		for _, item := range out.Items {
			s, err := itemToSubmission(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListPeriod unmarshal: %w", err)
			}
			subs = append(subs, s)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return subs, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func submissionItem(s domain.Submission) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: periodPK(Period(s.SubmittedAt))},
		"SK":             &types.AttributeValueMemberS{Value: subSK(s.SubmittedAt, s.ID)},
		"id":             &types.AttributeValueMemberS{Value: s.ID},
		"conversationId": &types.AttributeValueMemberS{Value: s.ConversationID},
		"submitter":      &types.AttributeValueMemberS{Value: s.Submitter},
		"format":         &types.AttributeValueMemberS{Value: string(s.Format)},
		"views":          numAttr(int64(s.Metrics.Views)),
		"likes":          numAttr(int64(s.Metrics.Likes)),
		"comments":       numAttr(int64(s.Metrics.Comments)),
		"shares":         numAttr(int64(s.Metrics.Shares)),
		"submittedAt":    &types.AttributeValueMemberS{Value: s.SubmittedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func itemToSubmission(item map[string]types.AttributeValue) (domain.Submission, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Submission{}, err
	}
	format, err := strAttr(item, "format")
	if err != nil {
		return domain.Submission{}, err
	}
	rawTS, err := strAttr(item, "submittedAt")
	if err != nil {
		return domain.Submission{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("repository: parse submittedAt: %w", err)
	}
	conversationID, _ := strAttr(item, "conversationId") // allow empty
	submitter, _ := strAttr(item, "submitter")           // allow empty

	var counts [4]int64
	for i, key := range []string{"views", "likes", "comments", "shares"} {
		counts[i], err = intAttr(item, key)
		if err != nil {
			return domain.Submission{}, err
		}
	}

	return domain.Submission{
		ID:             id,
		ConversationID: conversationID,
		Submitter:      submitter,
		Format:         domain.SourceFormat(format),
		Metrics: domain.Metrics{
			Views:    int(counts[0]),
			Likes:    int(counts[1]),
			Comments: int(counts[2]),
			Shares:   int(counts[3]),
		},
		SubmittedAt: ts,
	}, nil
}
