package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataTypeCompatible(t *testing.T) {
	assert.True(t, DataTypeText.Compatible(DataTypeText))
	assert.True(t, DataTypeAny.Compatible(DataTypeTable))
	assert.True(t, DataTypeTable.Compatible(DataTypeAny))
	assert.False(t, DataTypeText.Compatible(DataTypeNumber))
	assert.False(t, DataTypeTable.Compatible(DataTypeList))
}

func TestParameterValidate_TypeChecks(t *testing.T) {
	text := ParameterInfo{Name: "label", Type: ParameterTypeText}
	assert.NoError(t, text.Validate("hello"))
	assert.Error(t, text.Validate(42))

	number := ParameterInfo{Name: "limit", Type: ParameterTypeNumber}
	assert.NoError(t, number.Validate(10))
	assert.NoError(t, number.Validate(2.5))
	assert.Error(t, number.Validate("10"))

	boolean := ParameterInfo{Name: "strict", Type: ParameterTypeBoolean}
	assert.NoError(t, boolean.Validate(true))
	assert.Error(t, boolean.Validate("true"))
}

func TestParameterValidate_Choices(t *testing.T) {
	param := ParameterInfo{
		Name:    "mode",
		Type:    ParameterTypeChoice,
		Choices: []string{"fast", "safe"},
	}

	assert.NoError(t, param.Validate("fast"))

	err := param.Validate("reckless")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not one of the allowed choices")
}

func TestParameterValidate_Rules(t *testing.T) {
	minLen, maxLen := 3, 5
	length := ParameterInfo{
		Name:  "code",
		Type:  ParameterTypeText,
		Rules: ValidationRules{MinLength: &minLen, MaxLength: &maxLen},
	}
	assert.NoError(t, length.Validate("abcd"))
	assert.Error(t, length.Validate("ab"))
	assert.Error(t, length.Validate("abcdef"))

	minVal, maxVal := 1.0, 100.0
	bounded := ParameterInfo{
		Name:  "batch_size",
		Type:  ParameterTypeNumber,
		Rules: ValidationRules{MinValue: &minVal, MaxValue: &maxVal},
	}
	assert.NoError(t, bounded.Validate(50))
	assert.Error(t, bounded.Validate(0))
	assert.Error(t, bounded.Validate(101.5))
}

func TestParameterValidate_NilValue(t *testing.T) {
	optional := ParameterInfo{Name: "note", Type: ParameterTypeText}
	assert.NoError(t, optional.Validate(nil))

	required := ParameterInfo{Name: "path", Type: ParameterTypeFile, Required: true}
	assert.Error(t, required.Validate(nil))

	withDefault := ParameterInfo{Name: "sep", Type: ParameterTypeText, Required: true, Default: ","}
	assert.NoError(t, withDefault.Validate(nil))
}

func TestNodeInfoPortLookup(t *testing.T) {
	info := NodeInfo{
		Type:    "filter",
		Inputs:  []PortInfo{{Name: "rows", DataType: DataTypeTable}},
		Outputs: []PortInfo{{Name: "kept", DataType: DataTypeTable}},
	}

	in, ok := info.InputPort("rows")
	assert.True(t, ok)
	assert.Equal(t, DataTypeTable, in.DataType)

	_, ok = info.InputPort("kept")
	assert.False(t, ok)

	_, ok = info.OutputPort("kept")
	assert.True(t, ok)
}
