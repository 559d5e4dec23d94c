package docker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Label keys used for compass resources
const (
	LabelProject   = "compass.managed"
	LabelNamespace = "compass.namespace"
	LabelRunID     = "compass.run_id"
	LabelComponent = "compass.component"
	LabelRedisPort = "compass.redis.port"
)

// ComponentRedis labels the store container.
const ComponentRedis = "redis"

// DefaultRedisImage is used unless compass.yml overrides services.redis.image.
const DefaultRedisImage = "redis:7-alpine"

var unsafeName = regexp.MustCompile(`[^a-z0-9_.-]+`)

// BuildLabels creates the standard label set for compass resources.
func BuildLabels(namespace, runID, component string) map[string]string {
	labels := map[string]string{
		LabelProject:   "true",
		LabelNamespace: namespace,
		LabelRunID:     runID,
	}
	if component != "" {
		labels[LabelComponent] = component
	}
	return labels
}

// GenerateRunID creates a new UUID for a container run.
func GenerateRunID() string {
	return uuid.New().String()
}

// RedisContainerName returns the store container name for a namespace.
// Characters Docker rejects in names are replaced with '-'.
func RedisContainerName(namespace string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(namespace), "-"), "-._")
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("compass-redis-%s", name)
}
