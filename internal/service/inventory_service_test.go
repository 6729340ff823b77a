package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchReportAllApplied(t *testing.T) {
	report := &BatchReport{
		Succeeded: []BatchItem{{VariantID: 1, Quantity: 2}},
	}
	assert.True(t, report.AllApplied())

	report.Failed = append(report.Failed, BatchFailure{
		VariantID: 2, Quantity: 1, Reason: "insufficient stock",
	})
	assert.False(t, report.AllApplied())
}
