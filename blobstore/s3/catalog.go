package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentModification is returned when another writer claimed the
// same catalog version on every attempt.
var ErrConcurrentModification = errors.New("s3: concurrent catalog modification")

// maxCommitAttempts bounds the retries of a conditional catalog write.
const maxCommitAttempts = 5

// CatalogClient is the subset of the DynamoDB API used by Catalog.
// *dynamodb.Client satisfies it.
type CatalogClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ CatalogClient = (*dynamodb.Client)(nil)

// Entry is one recorded export of a recording.
type Entry struct {
	Source  string    `json:"source"`
	Version uint64    `json:"version"`
	Object  string    `json:"object"`
	Rows    int       `json:"rows"`
	Created time.Time `json:"created"`
}

// Catalog records exports in a DynamoDB table. Every source gets a
// monotonically increasing version; conditional writes keep concurrent
// exporters from overwriting each other's entries.
//
// Table schema:
//   - Partition key: source (string), the location of the recording
//   - Sort key: version (number)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name measx-exports \
//	  --attribute-definitions AttributeName=source,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=source,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Catalog struct {
	client CatalogClient
	table  string
	now    func() time.Time
}

// NewCatalog creates a catalog on an existing client.
func NewCatalog(client CatalogClient, table string) *Catalog {
	return &Catalog{client: client, table: table, now: time.Now}
}

// OpenCatalog creates a catalog from the default AWS credential chain.
func OpenCatalog(ctx context.Context, table string, optFns ...Option) (*Catalog, error) {
	opts := buildOptions(optFns)
	cfg, err := opts.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = opts.endpoint()
	})
	return NewCatalog(client, table), nil
}

// Record appends an entry for source. A version claimed concurrently by
// another writer is retried with the next one.
func (c *Catalog) Record(ctx context.Context, source, object string, rows int) (Entry, error) {
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		latest, err := c.History(ctx, source, 1)
		if err != nil {
			return Entry{}, err
		}
		e := Entry{Source: source, Version: 1, Object: object, Rows: rows, Created: c.now().UTC()}
		if len(latest) > 0 {
			e.Version = latest[0].Version + 1
		}

		_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(c.table),
			Item:                marshalEntry(e),
			ConditionExpression: aws.String("attribute_not_exists(version)"),
		})
		if err == nil {
			return e, nil
		}
		var condErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condErr) {
			return Entry{}, fmt.Errorf("record export: %w", err)
		}
	}
	return Entry{}, ErrConcurrentModification
}

// History returns the newest entries for source, newest first. A limit of
// zero or less returns all of them.
func (c *Catalog) History(ctx context.Context, source string, limit int) ([]Entry, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("#src = :src"),
		ExpressionAttributeNames: map[string]string{
			"#src": "source",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":src": &types.AttributeValueMemberS{Value: source},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(min(limit, 1<<30)))
	}

	p := dynamodb.NewQueryPaginator(c.client, in)
	var out []Entry
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query catalog: %w", err)
		}
		for _, item := range page.Items {
			e, err := unmarshalEntry(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func marshalEntry(e Entry) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"source":  &types.AttributeValueMemberS{Value: e.Source},
		"version": &types.AttributeValueMemberN{Value: strconv.FormatUint(e.Version, 10)},
		"object":  &types.AttributeValueMemberS{Value: e.Object},
		"rows":    &types.AttributeValueMemberN{Value: strconv.Itoa(e.Rows)},
		"created": &types.AttributeValueMemberS{Value: e.Created.Format(time.RFC3339Nano)},
	}
}

func unmarshalEntry(item map[string]types.AttributeValue) (Entry, error) {
	var e Entry
	var err error
	if e.Source, err = stringAttr(item, "source"); err != nil {
		return e, err
	}
	if e.Object, err = stringAttr(item, "object"); err != nil {
		return e, err
	}
	v, err := numberAttr(item, "version")
	if err != nil {
		return e, err
	}
	if e.Version, err = strconv.ParseUint(v, 10, 64); err != nil {
		return e, fmt.Errorf("catalog attribute version: %w", err)
	}
	r, err := numberAttr(item, "rows")
	if err != nil {
		return e, err
	}
	if e.Rows, err = strconv.Atoi(r); err != nil {
		return e, fmt.Errorf("catalog attribute rows: %w", err)
	}
	created, err := stringAttr(item, "created")
	if err != nil {
		return e, err
	}
	if e.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return e, fmt.Errorf("catalog attribute created: %w", err)
	}
	return e, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) (string, error) {
	v, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("catalog attribute %s: missing or not a string", name)
	}
	return v.Value, nil
}

func numberAttr(item map[string]types.AttributeValue, name string) (string, error) {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return "", fmt.Errorf("catalog attribute %s: missing or not a number", name)
	}
	return v.Value, nil
}
