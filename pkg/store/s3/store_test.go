package s3

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	s := New(nil, Config{Bucket: "b", KeyPrefix: "images/"})

	k1 := s.objectKey("https://x/a.png?w=1")
	k2 := s.objectKey("https://x/a.png?w=2")

	assert.True(t, strings.HasPrefix(k1, "images/"))
	assert.Len(t, k1, len("images/")+64)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, s.objectKey("https://x/a.png?w=1"))
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, isNotFoundError(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFoundError(&types.NotFound{}))
	assert.True(t, isNotFoundError(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFoundError(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFoundError(errors.New("404 in a message is not enough")))
	assert.False(t, isNotFoundError(nil))
}

func TestIsASCII(t *testing.T) {
	assert.True(t, isASCII("https://x/a%20b.png"))
	assert.False(t, isASCII("https://x/ü.png"))
}
