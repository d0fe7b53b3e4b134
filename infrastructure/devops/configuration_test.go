package devops

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	value string
	err   error
	input *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestLoadParameters(t *testing.T) {
	client := &fakeSSM{value: "MONGODB_URI: mongodb://db:27017\nEXPIRE_TIME_SECONDS: \"2592000\"\n"}
	l := &ParameterLoader{client: client}

	params, err := l.LoadParameters(context.Background(), "/autolog/prod")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017", params["MONGODB_URI"])
	assert.Equal(t, "2592000", params["EXPIRE_TIME_SECONDS"])
	assert.True(t, aws.ToBool(client.input.WithDecryption))
	assert.Equal(t, "/autolog/prod", aws.ToString(client.input.Name))
}

func TestLoadParametersErrors(t *testing.T) {
	_, err := (&ParameterLoader{client: &fakeSSM{err: errors.New("denied")}}).LoadParameters(context.Background(), "p")
	assert.EqualError(t, err, "get parameter p: denied")

	_, err = (&ParameterLoader{client: &fakeSSM{value: "- a\n- b\n"}}).LoadParameters(context.Background(), "p")
	assert.ErrorContains(t, err, "unmarshal yaml")
}
