package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestStoreErrorTranslation(t *testing.T) {
	err := storeError("GetCampaign", fmt.Errorf("failed to get campaign: %w", gorm.ErrRecordNotFound))
	assert.True(t, IsKind(err, KindNotFound))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	err = storeError("GenerateCampaignLink", gorm.ErrDuplicatedKey)
	assert.True(t, IsKind(err, KindConflict))

	err = storeError("JoinCampaign", errors.New("connection reset"))
	assert.True(t, IsKind(err, KindPersistence))

	var svcErr *Error
	assert.True(t, errors.As(err, &svcErr))
	assert.True(t, svcErr.Retryable())

	original := newError(KindCapacityExceeded, "JoinCampaign", "campaign %s is full", "c1")
	assert.Same(t, original, storeError("outer", original))
	assert.False(t, original.Retryable())

	assert.Nil(t, storeError("noop", nil))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
