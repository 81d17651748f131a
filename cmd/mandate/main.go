// mandate подписывает AP2-мандат ключом из конфигурации оркестратора и печатает JSON.
// Пример: mandate -task task-101 -budget 50
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xela07ax/agentstack-orchestrator/internal/infra"
	"github.com/xela07ax/agentstack-orchestrator/internal/wallet"
)

func main() {
	taskID := flag.String("task", "", "task id")
	budgetRaw := flag.String("budget", "", "budget limit, decimal (50, 12.5)")
	configPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml, ./configs/config.yaml)")
	verify := flag.String("verify", "", "signature to verify instead of signing")
	flag.Parse()

	budget, err := decimal.NewFromString(*budgetRaw)
	if *taskID == "" || err != nil || !budget.IsPositive() {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := infra.LoadConfigFrom(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	w, err := wallet.New([]byte(cfg.Wallet.SigningKey), cfg.Wallet.InitialBalance, cfg.Wallet.Currency, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to init wallet: %v", err)
	}

	m := w.Sign(*taskID, budget)
	if *verify != "" {
		m.Signature = *verify
		if !w.Verify(m) {
			log.Fatalf("signature is NOT valid for task %q budget %s", *taskID, wallet.CanonicalAmount(budget))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
