package aws

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TimeLayout is how stored timestamps are written. It is fixed width in UTC,
// so string order on a created_at sort key is chronological. RFC3339 parsing
// reads it back.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func sortableTimes(o *attributevalue.EncoderOptions) {
	o.EncodeTime = func(t time.Time) (types.AttributeValue, error) {
		return &types.AttributeValueMemberS{Value: FormatTime(t)}, nil
	}
}

// MarshalMap is attributevalue.MarshalMap with times written in TimeLayout.
func MarshalMap(in interface{}) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(in, sortableTimes)
}

// Marshal is attributevalue.Marshal with times written in TimeLayout.
func Marshal(in interface{}) (types.AttributeValue, error) {
	return attributevalue.MarshalWithOptions(in, sortableTimes)
}
