package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveInstallmentStatus(t *testing.T) {
	today := time.Date(2026, 3, 15, 10, 30, 0, 0, time.Local)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	tests := []struct {
		name    string
		due     string
		paid    string
		manual  string
		dueDate time.Time
		want    InstallmentStatus
	}{
		{"overdue when past due and unpaid", "1000", "0", "", yesterday, InstallmentStatusOverdue},
		{"dunning override suppresses overdue", "1000", "0", "dunning", yesterday, InstallmentStatusDunning},
		{"pending override still overdue", "1000", "0", "pending", yesterday, InstallmentStatusOverdue},
		{"unknown override ignored", "1000", "0", "whatever", yesterday, InstallmentStatusOverdue},
		{"due today is pending", "1000", "0", "", today, InstallmentStatusPending},
		{"future is pending", "1000", "0", "", tomorrow, InstallmentStatusPending},
		{"dunning on future date", "1000", "0", "dunning", tomorrow, InstallmentStatusDunning},
		{"partial beats dunning", "1000", "10", "dunning", yesterday, InstallmentStatusPartiallyReceived},
		{"partial beats overdue", "1000", "999.99", "", yesterday, InstallmentStatusPartiallyReceived},
		{"received within tolerance", "1000", "999.999995", "", yesterday, InstallmentStatusReceived},
		{"received beats dunning", "1000", "1000", "dunning", yesterday, InstallmentStatusReceived},
		{"zero due is never received", "0", "0", "", tomorrow, InstallmentStatusPending},
		{"tiny payment is not partial", "1000", "0.000001", "", tomorrow, InstallmentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveInstallmentStatus(d(tt.due), d(tt.paid), tt.manual, tt.dueDate, today)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInstallmentStatus_Monotonic(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	dueDate := today.AddDate(0, 0, -3)
	rank := map[InstallmentStatus]int{
		InstallmentStatusPending:           0,
		InstallmentStatusDunning:           0,
		InstallmentStatusOverdue:           0,
		InstallmentStatusPartiallyReceived: 1,
		InstallmentStatusReceived:          2,
	}

	for _, manual := range []string{"", "dunning", "pending"} {
		prev := -1
		for _, paid := range []string{"0", "0.5", "300", "999", "1000"} {
			s := ResolveInstallmentStatus(d("1000"), d(paid), manual, dueDate, today)
			assert.GreaterOrEqual(t, rank[s], prev, "manual=%q paid=%s", manual, paid)
			prev = rank[s]
		}
	}
}

func TestInstallmentStatus_Labels(t *testing.T) {
	for _, s := range AllInstallmentStatuses() {
		assert.True(t, s.IsValid())
		assert.NotEmpty(t, s.Label())
	}
	assert.False(t, InstallmentStatus("closed").IsValid())
	assert.True(t, InstallmentStatusDunning.IsManual())
	assert.True(t, InstallmentStatusPending.IsManual())
	assert.False(t, InstallmentStatusReceived.IsManual())
	assert.False(t, InstallmentStatusOverdue.IsManual())
}

func TestResolveContractStatus(t *testing.T) {
	assert.Equal(t, ContractStatusActive, ResolveContractStatus(ContractStatusActive, ""))
	assert.Equal(t, ContractStatus("on_hold"), ResolveContractStatus(ContractStatusSettled, "on_hold"))
	assert.Equal(t, ContractStatusSettled, ResolveContractStatus(ContractStatusActive, "settled"))
	assert.Equal(t, "已结清", ContractStatusSettled.Label())
	assert.Equal(t, "on_hold", ContractStatus("on_hold").Label())
}

func TestOverdueDays(t *testing.T) {
	today := time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, OverdueDays(today, today))
	assert.Equal(t, 1, OverdueDays(today.AddDate(0, 0, -1), today))
	assert.Equal(t, 31, OverdueDays(time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC), today))
	assert.Equal(t, 0, OverdueDays(today.AddDate(0, 0, 5), today))
	assert.Equal(t, 0, OverdueDays(time.Time{}, today))
}
