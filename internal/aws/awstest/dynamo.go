// Package awstest provides in-memory stand-ins for the AWS client interfaces.
//
// MemoryDynamo understands only the expression shapes the stores in this
// module emit: "a = :v" clauses joined by AND, attribute_exists /
// attribute_not_exists, and SET lists that may contain a single
// list_append(attr, :v). It is not a general DynamoDB emulator.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type tableSchema struct {
	hashKey  string
	rangeKey string
	// index name -> hash key attribute; index sort key is always created_at
	indexes map[string]string
}

// MemoryDynamo is a goroutine-safe in-memory DynamoDB.
type MemoryDynamo struct {
	mu      sync.Mutex
	schemas map[string]tableSchema
	tables  map[string]map[string]map[string]types.AttributeValue

	// Calls counts invocations per operation name.
	Calls map[string]int
	// failures are returned by the next call to the named operation.
	failures map[string]error
}

func NewMemoryDynamo() *MemoryDynamo {
	return &MemoryDynamo{
		schemas:  map[string]tableSchema{},
		tables:   map[string]map[string]map[string]types.AttributeValue{},
		Calls:    map[string]int{},
		failures: map[string]error{},
	}
}

// CreateTable registers a table. rangeKey may be empty.
func (m *MemoryDynamo) CreateTable(name, hashKey, rangeKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[name] = tableSchema{hashKey: hashKey, rangeKey: rangeKey, indexes: map[string]string{}}
	m.tables[name] = map[string]map[string]types.AttributeValue{}
}

// AddIndex registers a GSI whose hash key is attr.
func (m *MemoryDynamo) AddIndex(table, index, attr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[table].indexes[index] = attr
}

// FailNext makes the next call to op ("PutItem", "UpdateItem", ...) return err.
func (m *MemoryDynamo) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Item returns a copy of the stored item with the given key values, or nil.
func (m *MemoryDynamo) Item(table string, keyValues ...string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tables[table][strings.Join(keyValues, "#")]
	if !ok {
		return nil
	}
	return copyItem(item)
}

// Items returns copies of every item in table.
func (m *MemoryDynamo) Items(table string) []map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]types.AttributeValue, 0, len(m.tables[table]))
	for _, item := range m.tables[table] {
		out = append(out, copyItem(item))
	}
	return out
}

// Seed stores item directly, bypassing conditions.
func (m *MemoryDynamo) Seed(table string, item map[string]types.AttributeValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.keyOf(table, item)
	if err != nil {
		return err
	}
	m.tables[table][pk] = copyItem(item)
	return nil
}

func (m *MemoryDynamo) begin(op string) error {
	m.Calls[op]++
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

func (m *MemoryDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("PutItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := m.keyOf(table, params.Item)
	if err != nil {
		return nil, err
	}
	existing := m.tables[table][pk]
	ok, err := evaluate(deref(params.ConditionExpression), existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("put condition failed")}
	}
	m.tables[table][pk] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *MemoryDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := m.keyOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *MemoryDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("UpdateItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := m.keyOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	existing := m.tables[table][pk]
	ok, err := evaluate(deref(params.ConditionExpression), existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("update condition failed")}
	}

	item := copyItem(existing)
	if item == nil {
		item = copyItem(params.Key)
	}
	if err := applySet(item, deref(params.UpdateExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	m.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (m *MemoryDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("TransactWriteItems"); err != nil {
		return nil, err
	}
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	cancelled := false
	for i, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			return nil, errors.New("awstest: only Put is supported in transactions")
		}
		pk, err := m.keyOf(*p.TableName, p.Item)
		if err != nil {
			return nil, err
		}
		ok, err := evaluate(deref(p.ConditionExpression), m.tables[*p.TableName][pk], p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			cancelled = true
			reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed")}
		} else {
			reasons[i] = types.CancellationReason{Code: strPtr("None")}
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{Message: strPtr("transaction cancelled"), CancellationReasons: reasons}
	}
	for _, it := range params.TransactItems {
		pk, _ := m.keyOf(*it.Put.TableName, it.Put.Item)
		m.tables[*it.Put.TableName][pk] = copyItem(it.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *MemoryDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("Query"); err != nil {
		return nil, err
	}
	table := *params.TableName
	schema, ok := m.schemas[table]
	if !ok {
		return nil, fmt.Errorf("awstest: unknown table %s", table)
	}
	if params.IndexName != nil {
		if _, ok := schema.indexes[*params.IndexName]; !ok {
			return nil, fmt.Errorf("awstest: unknown index %s", *params.IndexName)
		}
	}
	var items []map[string]types.AttributeValue
	for _, item := range m.tables[table] {
		keyOK, err := evaluate(deref(params.KeyConditionExpression), item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !keyOK {
			continue
		}
		filterOK, err := evaluate(deref(params.FilterExpression), item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if filterOK {
			items = append(items, copyItem(item))
		}
	}
	forward := params.ScanIndexForward == nil || *params.ScanIndexForward
	sort.SliceStable(items, func(i, j int) bool {
		a, b := stringAttr(items[i], "created_at"), stringAttr(items[j], "created_at")
		if forward {
			return a < b
		}
		return a > b
	})
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (m *MemoryDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("Scan"); err != nil {
		return nil, err
	}
	var items []map[string]types.AttributeValue
	for _, item := range m.tables[*params.TableName] {
		ok, err := evaluate(deref(params.FilterExpression), item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, copyItem(item))
		}
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func (m *MemoryDynamo) keyOf(table string, item map[string]types.AttributeValue) (string, error) {
	schema, ok := m.schemas[table]
	if !ok {
		return "", fmt.Errorf("awstest: unknown table %s", table)
	}
	hash := stringAttr(item, schema.hashKey)
	if hash == "" {
		return "", fmt.Errorf("awstest: missing key %s for table %s", schema.hashKey, table)
	}
	if schema.rangeKey == "" {
		return hash, nil
	}
	rng := stringAttr(item, schema.rangeKey)
	if rng == "" {
		return "", fmt.Errorf("awstest: missing key %s for table %s", schema.rangeKey, table)
	}
	return hash + "#" + rng, nil
}

// evaluate reports whether item satisfies expr. An empty expr is always true.
func evaluate(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists("):
			attr := resolve(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
			if _, ok := item[attr]; ok {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_exists("):
			attr := resolve(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
			if _, ok := item[attr]; !ok {
				return false, nil
			}
		default:
			parts := strings.SplitN(clause, " = ", 2)
			if len(parts) != 2 {
				return false, fmt.Errorf("awstest: unsupported clause %q", clause)
			}
			want, ok := values[strings.TrimSpace(parts[1])]
			if !ok {
				return false, fmt.Errorf("awstest: missing value %s", parts[1])
			}
			got, ok := item[resolve(strings.TrimSpace(parts[0]), names)]
			if !ok || !reflect.DeepEqual(got, want) {
				return false, nil
			}
		}
	}
	return true, nil
}

func applySet(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("awstest: unsupported update %q", expr)
	}
	var clauses []string
	for _, piece := range strings.Split(strings.TrimPrefix(expr, "SET "), ", ") {
		if !strings.Contains(piece, " = ") && len(clauses) > 0 {
			clauses[len(clauses)-1] += ", " + piece
			continue
		}
		clauses = append(clauses, piece)
	}
	for _, clause := range clauses {
		parts := strings.SplitN(clause, " = ", 2)
		attr := resolve(strings.TrimSpace(parts[0]), names)
		rhs := strings.TrimSpace(parts[1])
		if strings.HasPrefix(rhs, "list_append(") {
			args := strings.Split(strings.TrimSuffix(strings.TrimPrefix(rhs, "list_append("), ")"), ",")
			if len(args) != 2 {
				return fmt.Errorf("awstest: bad list_append %q", rhs)
			}
			base, _ := item[resolve(strings.TrimSpace(args[0]), names)].(*types.AttributeValueMemberL)
			add, ok := values[strings.TrimSpace(args[1])].(*types.AttributeValueMemberL)
			if !ok {
				return fmt.Errorf("awstest: list_append value is not a list")
			}
			merged := &types.AttributeValueMemberL{}
			if base != nil {
				merged.Value = append(merged.Value, base.Value...)
			}
			merged.Value = append(merged.Value, add.Value...)
			item[attr] = merged
			continue
		}
		v, ok := values[rhs]
		if !ok {
			return fmt.Errorf("awstest: missing value %s", rhs)
		}
		item[attr] = v
	}
	return nil
}

func resolve(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		if n, ok := names[token]; ok {
			return n
		}
	}
	return token
}

func stringAttr(item map[string]types.AttributeValue, attr string) string {
	switch v := item[attr].(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }
