package engine

/*
Файл orchestrator.go - Execution Pipeline оркестратора.

Цепочка доверия строго последовательна, без повторов:
Start -> Authenticated -> Redacted -> MandateVerified -> Charged -> AgentResolved -> Dispatched -> Done.

Списание необратимо: если после Charged агент или инструмент не найдены,
деньги не возвращаются. Каждое исполнение оставляет событие в журнале (AgentFS)
и метрики, независимо от исхода.
*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xela07ax/agentstack-orchestrator/internal/audit"
	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
)

// Stage - последнее достигнутое состояние пайплайна
type Stage string

const (
	StageStart           Stage = "Start"
	StageAuthenticated   Stage = "Authenticated"
	StageRedacted        Stage = "Redacted"
	StageMandateVerified Stage = "MandateVerified"
	StageCharged         Stage = "Charged"
	StageAgentResolved   Stage = "AgentResolved"
	StageDispatched      Stage = "Dispatched"
	StageDone            Stage = "Done"
)

// DefaultFlatFee - стоимость вызова, если в конфиге не задана
var DefaultFlatFee = decimal.NewFromInt(10)

type Authenticator interface {
	Validate(credential string) error
}

type Redactor interface {
	RedactArguments(args map[string]any) map[string]any
}

// PaymentAuthority - кошелек. OnBalanceChange вызывается внутри критической секции
// списания, поэтому наблюдатель видит остатки строго в порядке списаний.
type PaymentAuthority interface {
	Charge(amount decimal.Decimal, m domain.Mandate) (decimal.Decimal, error)
	Balance() decimal.Decimal
	OnBalanceChange(fn func(balance decimal.Decimal))
}

type AgentDirectory interface {
	Get(name string) (domain.AgentProfile, bool)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, toolName string, args map[string]any) (any, error)
}

// Deps - компоненты, через которые проходит запрос
type Deps struct {
	Gate     Authenticator
	Redactor Redactor
	Wallet   PaymentAuthority
	Agents   AgentDirectory
	Tools    Dispatcher
	Auditor  audit.Auditor   // nil - без журнала
	Metrics  *Metrics        // nil - метрики в никуда
	FlatFee  decimal.Decimal // <= 0 - DefaultFlatFee
}

type Orchestrator struct {
	gate     Authenticator
	redactor Redactor
	wallet   PaymentAuthority
	agents   AgentDirectory
	tools    Dispatcher
	auditor  audit.Auditor
	metrics  *Metrics
	flatFee  decimal.Decimal
	logger   *zap.Logger
}

func NewOrchestrator(d Deps, logger *zap.Logger) (*Orchestrator, error) {
	if d.Gate == nil || d.Redactor == nil || d.Wallet == nil || d.Agents == nil || d.Tools == nil {
		return nil, errors.New("engine: gate, redactor, wallet, agents and tools are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	if !d.FlatFee.IsPositive() {
		d.FlatFee = DefaultFlatFee
	}

	o := &Orchestrator{
		gate:     d.Gate,
		redactor: d.Redactor,
		wallet:   d.Wallet,
		agents:   d.Agents,
		tools:    d.Tools,
		auditor:  d.Auditor,
		metrics:  d.Metrics,
		flatFee:  d.FlatFee,
		logger:   logger.With(zap.String("mod", "pipeline")),
	}
	o.wallet.OnBalanceChange(func(balance decimal.Decimal) {
		o.metrics.WalletBalance.Set(balance.InexactFloat64())
	})
	o.metrics.WalletBalance.Set(o.wallet.Balance().InexactFloat64())
	return o, nil
}

func (o *Orchestrator) FlatFee() decimal.Decimal { return o.flatFee }

// Execute прогоняет запрос через всю цепочку. Ошибки - sentinel-значения из domain,
// обернутые контекстом; сопоставлять через errors.Is.
func (o *Orchestrator) Execute(ctx context.Context, credential string, req domain.ExecuteRequest) (*domain.ExecuteResult, error) {
	start := time.Now()
	event := audit.AuditEvent{
		ID:        uuid.New().String(),
		TraceID:   TraceID(ctx),
		AgentName: req.AgentName,
		ToolName:  req.ToolName,
		TaskID:    req.Mandate.TaskID,
		Timestamp: start,
	}

	res, stage, err := o.run(ctx, credential, req, &event)

	event.Stage = string(stage)
	event.DurationMs = time.Since(start).Milliseconds()
	o.record(&event, stage, err, time.Since(start))
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, credential string, req domain.ExecuteRequest, event *audit.AuditEvent) (*domain.ExecuteResult, Stage, error) {
	stage := StageStart

	if err := o.gate.Validate(credential); err != nil {
		return nil, stage, err
	}
	stage = StageAuthenticated

	// Дальше по пайплайну и в журнал идут только отфильтрованные аргументы
	args := o.redactor.RedactArguments(req.Arguments)
	event.Arguments = args
	stage = StageRedacted

	remaining, err := o.wallet.Charge(o.flatFee, req.Mandate)
	if err != nil {
		if errors.Is(err, domain.ErrBudgetExceeded) || errors.Is(err, domain.ErrInsufficientFunds) {
			// Подпись уже проверена внутри Charge
			stage = StageMandateVerified
		}
		return nil, stage, fmt.Errorf("charge task %q: %w", req.Mandate.TaskID, err)
	}
	stage = StageCharged
	event.Cost = o.flatFee
	o.metrics.Charges.Inc()
	o.metrics.ChargedAmount.Add(o.flatFee.InexactFloat64())
	o.logger.Debug("mandate charged",
		zap.String("task_id", req.Mandate.TaskID),
		zap.Stringer("remaining_balance", remaining))

	profile, ok := o.agents.Get(req.AgentName)
	if !ok {
		return nil, stage, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, req.AgentName)
	}
	stage = StageAgentResolved

	result, err := o.tools.Dispatch(ctx, req.ToolName, args)
	if err != nil {
		return nil, stage, err
	}
	stage = StageDispatched

	res := &domain.ExecuteResult{
		Status: "success",
		Agent:  profile.Name,
		Tool:   req.ToolName,
		Result: result,
		Cost:   o.flatFee,
	}
	return res, StageDone, nil
}

func (o *Orchestrator) record(event *audit.AuditEvent, stage Stage, err error, took time.Duration) {
	code := domain.ErrorCode(err)
	switch {
	case err == nil:
		event.Status = audit.StatusSuccess
	case event.Cost.IsPositive():
		event.Status = audit.StatusFailed
	default:
		event.Status = audit.StatusRejected
	}
	if err != nil {
		event.ErrorCode = code
		event.Error = err.Error()
	}

	o.metrics.Requests.WithLabelValues(code, string(stage)).Inc()
	o.metrics.RequestDuration.WithLabelValues(code).Observe(took.Seconds())

	if o.auditor != nil {
		o.auditor.Log(*event)
	}

	fields := []zap.Field{
		zap.String("trace_id", event.TraceID),
		zap.String("agent_name", event.AgentName),
		zap.String("tool_name", event.ToolName),
		zap.String("task_id", event.TaskID),
		zap.String("stage", string(stage)),
		zap.Stringer("cost", event.Cost),
		zap.Duration("took", took),
	}
	if err != nil {
		o.logger.Warn("execution rejected", append(fields, zap.String("code", code), zap.Error(err))...)
		return
	}
	o.logger.Info("execution done", fields...)
}
