// Package config holds the small provider records the ObjectStore factory
// is built from (§6), plus environment-variable resolution of credentials.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/viper"
)

// Provider is a small record describing how to reach an S3-compatible
// endpoint: which URL to use (empty selects the SDK's own default
// resolution), whether to force path-style addressing, whether requests
// should be signed at all, and a default region when none is otherwise
// configured.
type Provider struct {
	Name           string
	Description    string
	EndpointURL    string
	ForcePathStyle bool
	Anonymous      bool
	DefaultRegion  string
}

var builtins = map[string]Provider{
	"aws": {
		Name:        "aws",
		Description: "Amazon S3, no overrides; region and credentials come from the environment or ~/.aws",
	},
	"sourcecoop": {
		Name:           "sourcecoop",
		Description:    "Source Cooperative public data (anonymous, path-style, us-west-2)",
		EndpointURL:    "https://data.source.coop",
		ForcePathStyle: true,
		Anonymous:      true,
		DefaultRegion:  "us-west-2",
	},
}

// Get returns the named built-in provider.
func Get(name string) (Provider, bool) {
	p, ok := builtins[name]
	return p, ok
}

// Names returns every built-in provider name, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PrintList writes "--list-providers" output: one "name  description" line
// per built-in, sorted by name.
func PrintList(w func(format string, args ...interface{})) {
	for _, n := range Names() {
		p := builtins[n]
		w("%-12s %s\n", p.Name, p.Description)
	}
}

// Credentials is the resolved set of environment-sourced credential
// material the ObjectStore factory hands to the AWS SDK's static
// credentials provider when set; an empty Credentials defers entirely to
// the SDK's own default chain (env, shared config, IMDS, ...).
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	EndpointURL     string
	Profile         string
}

// ResolveEnv reads the recognized environment variables (§6) via viper's
// env binding, the way the rest of this module's CLI config is read.
func ResolveEnv() Credentials {
	v := viper.New()
	v.AutomaticEnv()
	for _, key := range []string{
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
		"AWS_REGION", "AWS_DEFAULT_REGION", "AWS_ENDPOINT_URL", "AWS_PROFILE",
	} {
		_ = v.BindEnv(key)
	}

	region := v.GetString("AWS_REGION")
	if region == "" {
		region = v.GetString("AWS_DEFAULT_REGION")
	}

	return Credentials{
		AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    v.GetString("AWS_SESSION_TOKEN"),
		Region:          region,
		EndpointURL:     v.GetString("AWS_ENDPOINT_URL"),
		Profile:         v.GetString("AWS_PROFILE"),
	}
}

// CredentialsFilePath returns the default AWS credentials file location.
// s3store.New passes it explicitly via WithSharedConfigFiles when a named
// profile is in play, rather than relying on the SDK to rediscover the
// same default path on its own.
func CredentialsFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/.aws/credentials", home)
}
