package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "orch"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRegistryAnnounce - трансляция регистраций агентов между инстансами.
	RedisChanRegistryAnnounce = RedisNamespace + ":registry:announce"
)
