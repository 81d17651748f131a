package wallet

/*
Файл wallet.go реализует Mandate Authority (AP2): подпись и проверку мандатов
и атомарное списание с баланса.

Инварианты:
- Balance >= 0 всегда. Баланс только уменьшается и только на сумму успешного списания.
- Charge - одна критическая секция: проверка достаточности средств и декремент
  выполняются под одним мьютексом, иначе два конкурентных запроса могут пройти
  проверку по устаревшему балансу и вместе уйти в минус.
- Порядок проверок фиксирован: подпись -> бюджет мандата -> баланс.
*/

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"go.uber.org/zap"
)

// Wallet - процессный singleton, владеет ключом подписи и балансом
type Wallet struct {
	signingKey []byte
	currency   string
	logger     *zap.Logger

	mu       sync.Mutex
	balance  decimal.Decimal
	onChange func(decimal.Decimal)
}

// New создает кошелек. Пустой ключ и отрицательный баланс - ошибка конфигурации.
func New(signingKey []byte, initialBalance decimal.Decimal, currency string, logger *zap.Logger) (*Wallet, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("wallet: signing key is empty")
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("wallet: invalid initial balance %s", initialBalance)
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Wallet{
		signingKey: append([]byte(nil), signingKey...),
		currency:   currency,
		balance:    initialBalance,
		logger:     logger.Named("wallet"),
	}, nil
}

// Sign выпускает мандат на задачу с лимитом budget.
// Лимит в мандате - ровно то значение, которое покрыто подписью.
func (w *Wallet) Sign(taskID string, budget decimal.Decimal) domain.Mandate {
	signed := canonicalDecimal(budget)
	return domain.Mandate{
		TaskID:      taskID,
		BudgetLimit: signed,
		Currency:    w.currency,
		Signature:   hex.EncodeToString(w.mac(taskID, signed)),
	}
}

// Verify пересчитывает подпись и сравнивает за постоянное время.
// На любой некорректный ввод возвращает false, не паникует.
func (w *Wallet) Verify(m domain.Mandate) bool {
	// Лимит с точностью выше подписываемой строки не покрыт подписью целиком
	if !canonicalDecimal(m.BudgetLimit).Equal(m.BudgetLimit) {
		return false
	}
	// Сравниваем hex-строки целиком: подпись на проводе всегда lowercase hex,
	// поэтому "ABCD..." не считается валидной записью той же подписи.
	expected := hex.EncodeToString(w.mac(m.TaskID, m.BudgetLimit))
	return hmac.Equal([]byte(expected), []byte(m.Signature))
}

// Charge списывает amount по мандату m и возвращает остаток после списания.
// Ошибки: ErrInvalidAmount, ErrInvalidMandate, ErrBudgetExceeded, ErrInsufficientFunds.
func (w *Wallet) Charge(amount decimal.Decimal, m domain.Mandate) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	// 1. Подпись. Ключ неизменяем, проверка идет вне критической секции.
	if !w.Verify(m) {
		w.logger.Warn("payment rejected: invalid mandate signature", zap.String("task_id", m.TaskID))
		return decimal.Zero, domain.ErrInvalidMandate
	}

	// 2. Лимит мандата
	if amount.Cmp(m.BudgetLimit) > 0 {
		w.logger.Warn("payment rejected: amount exceeds mandate budget",
			zap.String("task_id", m.TaskID),
			zap.Stringer("amount", amount),
			zap.Stringer("budget_limit", m.BudgetLimit))
		return decimal.Zero, domain.ErrBudgetExceeded
	}

	// 3. Баланс: проверка и декремент - одна критическая секция
	w.mu.Lock()
	if amount.Cmp(w.balance) > 0 {
		balance := w.balance
		w.mu.Unlock()
		w.logger.Warn("payment rejected: insufficient wallet funds",
			zap.String("task_id", m.TaskID),
			zap.Stringer("amount", amount),
			zap.Stringer("balance", balance))
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	w.balance = w.balance.Sub(amount)
	remaining := w.balance
	if w.onChange != nil {
		w.onChange(remaining)
	}
	w.mu.Unlock()

	w.logger.Info("payment processed",
		zap.String("task_id", m.TaskID),
		zap.Stringer("amount", amount),
		zap.Stringer("remaining_balance", remaining))
	return remaining, nil
}

// Balance - снимок текущего баланса (только чтение)
func (w *Wallet) Balance() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// OnBalanceChange регистрирует наблюдателя за остатком (метрики).
// fn вызывается под мьютексом кошелька и не должна обращаться к нему.
func (w *Wallet) OnBalanceChange(fn func(balance decimal.Decimal)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Currency - валюта кошелька, проставляется в выпускаемые мандаты
func (w *Wallet) Currency() string { return w.currency }

func (w *Wallet) mac(taskID string, budget decimal.Decimal) []byte {
	h := hmac.New(sha256.New, w.signingKey)
	h.Write([]byte(taskID + ":" + CanonicalAmount(budget)))
	return h.Sum(nil)
}

// CanonicalAmount - каноническая строка суммы в подписываемом payload.
// Это repr двоичного float64: кратчайшие цифры, точка всегда есть
// (50 -> "50.0", 12.5 -> "12.5"), а вне диапазона 1e-4 <= |v| < 1e16
// экспоненциальная запись (1e16 -> "1e+16", 0.00001 -> "1e-05").
// В таком виде мандаты подписывались исторически.
func CanonicalAmount(v decimal.Decimal) string {
	f := v.InexactFloat64()
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.LastIndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// canonicalDecimal - значение, которое реально покрывает подпись
func canonicalDecimal(v decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(CanonicalAmount(v))
	if err != nil {
		// inf: сумма вне диапазона float64, такой лимит подписать нельзя
		return decimal.Zero
	}
	return d
}
