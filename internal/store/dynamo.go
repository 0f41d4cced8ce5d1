package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/gift-exchange/internal/domain"
)

// DynamoStore keeps all event documents in a single table.
//
// Key layout:
//
//	PK = EVENT#<eventID>
//	SK = META                      event document
//	SK = PARTICIPANT#<id>          participant document
//	SK = ASSIGNMENT#<id>           assignment document
//	SK = EMAILLOG#<id>             email log document
//
// Email logs additionally carry a MessageID attribute indexed by the
// messageId-index GSI for webhook correlation.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

const (
	skMeta              = "META"
	skParticipantPrefix = "PARTICIPANT#"
	skAssignmentPrefix  = "ASSIGNMENT#"
	skEmailLogPrefix    = "EMAILLOG#"

	messageIDIndex = "messageId-index"

	// DynamoDB caps TransactWriteItems at 100 items per call.
	maxTransactItems = 100
)

type dynamoItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	MessageID string `dynamodbav:"MessageID,omitempty"`
	Timestamp string `dynamodbav:"Timestamp"`
}

// NewDynamoStore loads AWS config and wraps the table client.
func NewDynamoStore(ctx context.Context, tableName, region, profile string) (*DynamoStore, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
	}, nil
}

func eventPK(eventID string) string { return "EVENT#" + eventID }

func (s *DynamoStore) marshalItem(pk, sk string, doc any, messageID string) (map[string]types.AttributeValue, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}
	item := dynamoItem{
		PK:        pk,
		SK:        sk,
		Data:      string(data),
		MessageID: messageID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshaling item: %w", err)
	}
	return av, nil
}

func (s *DynamoStore) putDocument(ctx context.Context, pk, sk string, doc any, messageID string) error {
	av, err := s.marshalItem(pk, sk, doc, messageID)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item: %w", err)
	}
	return nil
}

func (s *DynamoStore) getDocument(ctx context.Context, pk, sk string, out any) error {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return fmt.Errorf("getting item: %w", err)
	}
	if result.Item == nil {
		return ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return fmt.Errorf("unmarshaling item: %w", err)
	}
	if err := json.Unmarshal([]byte(item.Data), out); err != nil {
		return fmt.Errorf("unmarshaling document: %w", err)
	}
	return nil
}

// queryPrefix returns the raw Data payloads of every item under pk whose
// sort key begins with skPrefix.
func (s *DynamoStore) queryPrefix(ctx context.Context, pk, skPrefix string) ([]dynamoItem, error) {
	var items []dynamoItem
	var lastKey map[string]types.AttributeValue

	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
				":sk": &types.AttributeValueMemberS{Value: skPrefix},
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("querying items: %w", err)
		}
		for _, raw := range result.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshaling item: %w", err)
			}
			items = append(items, item)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		lastKey = result.LastEvaluatedKey
	}
	return items, nil
}

func (s *DynamoStore) CreateEvent(ctx context.Context, ev *domain.Event) error {
	return s.putDocument(ctx, eventPK(ev.ID), skMeta, ev, "")
}

func (s *DynamoStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var ev domain.Event
	if err := s.getDocument(ctx, eventPK(id), skMeta, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// EventsByOrganizer scans event META documents. The table stays small
// enough per deployment that a filtered scan is acceptable here.
func (s *DynamoStore) EventsByOrganizer(ctx context.Context, organizerEmail string) ([]domain.Event, error) {
	var out []domain.Event
	var lastKey map[string]types.AttributeValue

	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("SK = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sk": &types.AttributeValueMemberS{Value: skMeta},
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scanning events: %w", err)
		}
		for _, raw := range result.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshaling item: %w", err)
			}
			var ev domain.Event
			if err := json.Unmarshal([]byte(item.Data), &ev); err != nil {
				return nil, fmt.Errorf("unmarshaling event: %w", err)
			}
			if strings.EqualFold(ev.OrganizerEmail, organizerEmail) {
				out = append(out, ev)
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		lastKey = result.LastEvaluatedKey
	}

	sortEventsNewestFirst(out)
	return out, nil
}

func (s *DynamoStore) UpdateEvent(ctx context.Context, id string, upd EventUpdate, at time.Time) error {
	ev, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if upd.Name != nil {
		ev.Name = *upd.Name
	}
	if upd.Date != nil {
		ev.Date = *upd.Date
	}
	if upd.SuggestedAmount != nil {
		ev.SuggestedAmount = *upd.SuggestedAmount
	}
	if upd.CustomMessage != nil {
		ev.CustomMessage = *upd.CustomMessage
	}
	ev.UpdatedAt = at
	return s.putDocument(ctx, eventPK(id), skMeta, ev, "")
}

func (s *DynamoStore) AddParticipant(ctx context.Context, p *domain.Participant) error {
	return s.putDocument(ctx, eventPK(p.EventID), skParticipantPrefix+p.ID, p, "")
}

func (s *DynamoStore) GetParticipant(ctx context.Context, eventID, id string) (*domain.Participant, error) {
	var p domain.Participant
	if err := s.getDocument(ctx, eventPK(eventID), skParticipantPrefix+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *DynamoStore) Participants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	items, err := s.queryPrefix(ctx, eventPK(eventID), skParticipantPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Participant, 0, len(items))
	for _, item := range items {
		var p domain.Participant
		if err := json.Unmarshal([]byte(item.Data), &p); err != nil {
			return nil, fmt.Errorf("unmarshaling participant: %w", err)
		}
		out = append(out, p)
	}
	sortParticipantsOldestFirst(out)
	return out, nil
}

func (s *DynamoStore) DeleteParticipant(ctx context.Context, eventID, id string) error {
	result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventPK(eventID)},
			"SK": &types.AttributeValueMemberS{Value: skParticipantPrefix + id},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("deleting participant: %w", err)
	}
	if result.Attributes == nil {
		return ErrNotFound
	}
	return nil
}

func (s *DynamoStore) Assignments(ctx context.Context, eventID string) ([]domain.Assignment, error) {
	items, err := s.queryPrefix(ctx, eventPK(eventID), skAssignmentPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Assignment, 0, len(items))
	for _, item := range items {
		var a domain.Assignment
		if err := json.Unmarshal([]byte(item.Data), &a); err != nil {
			return nil, fmt.Errorf("unmarshaling assignment: %w", err)
		}
		out = append(out, a)
	}
	sortAssignmentsByID(out)
	return out, nil
}

func (s *DynamoStore) ReplaceAssignments(ctx context.Context, eventID string, assignments []domain.Assignment, raffleAt time.Time) error {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	old, err := s.queryPrefix(ctx, eventPK(eventID), skAssignmentPrefix)
	if err != nil {
		return err
	}

	pk := eventPK(eventID)
	items := make([]types.TransactWriteItem, 0, len(old)+len(assignments)+1)

	for _, item := range old {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: pk},
					"SK": &types.AttributeValueMemberS{Value: item.SK},
				},
			},
		})
	}

	for _, a := range assignments {
		av, err := s.marshalItem(pk, skAssignmentPrefix+a.ID, a, "")
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.tableName),
				Item:      av,
			},
		})
	}

	ev.Status = domain.StatusSorted
	ev.LastRaffleAt = &raffleAt
	ev.UpdatedAt = raffleAt
	evAV, err := s.marshalItem(pk, skMeta, ev, "")
	if err != nil {
		return err
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.tableName),
			Item:      evAV,
		},
	})

	return s.transactWrite(ctx, items)
}

func (s *DynamoStore) SyncParticipantEmail(ctx context.Context, eventID, participantID, newEmail string, at time.Time) error {
	p, err := s.GetParticipant(ctx, eventID, participantID)
	if err != nil {
		return err
	}
	oldEmail := p.Email
	p.Email = strings.ToLower(newEmail)
	p.UpdatedAt = at

	pk := eventPK(eventID)
	pAV, err := s.marshalItem(pk, skParticipantPrefix+p.ID, p, "")
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName: aws.String(s.tableName),
			Item:      pAV,
		},
	}}

	raw, err := s.queryPrefix(ctx, pk, skAssignmentPrefix)
	if err != nil {
		return err
	}
	for _, item := range raw {
		var a domain.Assignment
		if err := json.Unmarshal([]byte(item.Data), &a); err != nil {
			return fmt.Errorf("unmarshaling assignment: %w", err)
		}
		if !strings.EqualFold(a.GiverEmail, oldEmail) {
			continue
		}
		a.GiverEmail = p.Email
		av, err := s.marshalItem(pk, item.SK, a, "")
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.tableName),
				Item:      av,
			},
		})
	}

	return s.transactWrite(ctx, items)
}

func (s *DynamoStore) AppendEmailLog(ctx context.Context, entry *domain.EmailLog) error {
	return s.putDocument(ctx, eventPK(entry.EventID), skEmailLogPrefix+entry.ID, entry, entry.MessageID)
}

func (s *DynamoStore) RecordDispatch(ctx context.Context, eventID string, logs []domain.EmailLog, at time.Time) error {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	pk := eventPK(eventID)
	items := make([]types.TransactWriteItem, 0, len(logs)+1)
	for _, entry := range logs {
		av, err := s.marshalItem(pk, skEmailLogPrefix+entry.ID, entry, entry.MessageID)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.tableName),
				Item:      av,
			},
		})
	}

	ev.Status = domain.StatusEmailsSent
	ev.LastEmailSentAt = &at
	ev.UpdatedAt = at
	evAV, err := s.marshalItem(pk, skMeta, ev, "")
	if err != nil {
		return err
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.tableName),
			Item:      evAV,
		},
	})

	return s.transactWrite(ctx, items)
}

// transactWrite applies the items in a single TransactWriteItems call,
// chunking only when the 100-item service cap forces it. A chunked write
// loses all-or-nothing across chunks; events of that size are far beyond
// any realistic gift exchange.
func (s *DynamoStore) transactWrite(ctx context.Context, items []types.TransactWriteItem) error {
	for start := 0; start < len(items); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(items) {
			end = len(items)
		}
		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		})
		if err != nil {
			return fmt.Errorf("transact write: %w", err)
		}
	}
	return nil
}

func (s *DynamoStore) EmailLogs(ctx context.Context, eventID string) ([]domain.EmailLog, error) {
	items, err := s.queryPrefix(ctx, eventPK(eventID), skEmailLogPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EmailLog, 0, len(items))
	for _, item := range items {
		var entry domain.EmailLog
		if err := json.Unmarshal([]byte(item.Data), &entry); err != nil {
			return nil, fmt.Errorf("unmarshaling email log: %w", err)
		}
		out = append(out, entry)
	}
	sortEmailLogsNewestFirst(out)
	return out, nil
}

func (s *DynamoStore) FindEmailLogByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(messageIDIndex),
		KeyConditionExpression: aws.String("MessageID = :mid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":mid": &types.AttributeValueMemberS{Value: messageID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("querying message id index: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	var entry domain.EmailLog
	if err := json.Unmarshal([]byte(item.Data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshaling email log: %w", err)
	}
	return &entry, nil
}

func (s *DynamoStore) UpdateEmailLogStatus(ctx context.Context, eventID, logID, status string, webhookData map[string]any, at time.Time) error {
	var entry domain.EmailLog
	pk := eventPK(eventID)
	sk := skEmailLogPrefix + logID
	if err := s.getDocument(ctx, pk, sk, &entry); err != nil {
		return err
	}
	entry.Status = status
	entry.WebhookData = webhookData
	entry.UpdatedAt = &at
	return s.putDocument(ctx, pk, sk, &entry, entry.MessageID)
}

func (s *DynamoStore) Close() error { return nil }
