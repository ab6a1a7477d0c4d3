// Package infra simulates multi-cloud instance telemetry and produces
// rightsizing recommendations from it.
package infra

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Provider identifies a cloud provider.
type Provider string

const (
	ProviderAWS Provider = "aws"
	ProviderGCP Provider = "gcp"
	ProviderOCI Provider = "oci"
)

// Providers lists every supported provider in reporting order.
var Providers = []Provider{ProviderAWS, ProviderGCP, ProviderOCI}

// ParseProvider validates a provider supplied by a caller.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider: %q", s)
}

// InstanceType is a purchasable machine shape.
type InstanceType struct {
	Name        string          `json:"-"`
	VCPU        int             `json:"vcpu"`
	MemoryGB    float64         `json:"memory_gb"`
	CostPerHour decimal.Decimal `json:"cost_per_hour"`
}

func shape(name string, vcpu int, memoryGB, cost float64) InstanceType {
	return InstanceType{
		Name:        name,
		VCPU:        vcpu,
		MemoryGB:    memoryGB,
		CostPerHour: decimal.NewFromFloat(cost),
	}
}

// Catalog holds instance types per provider. Order matters: rightsizing picks
// the first cheaper type in catalog order.
type Catalog map[Provider][]InstanceType

// DefaultCatalog returns on-demand pricing for the simulated fleet.
func DefaultCatalog() Catalog {
	return Catalog{
		ProviderAWS: {
			shape("t3.micro", 2, 1, 0.0104),
			shape("t3.medium", 2, 4, 0.0416),
			shape("m5.large", 2, 8, 0.096),
			shape("m5.xlarge", 4, 16, 0.192),
			shape("c5.2xlarge", 8, 16, 0.34),
			shape("p3.2xlarge", 8, 61, 3.06),
		},
		ProviderGCP: {
			shape("e2-micro", 2, 1, 0.0084),
			shape("e2-medium", 2, 4, 0.0335),
			shape("n1-standard-2", 2, 7.5, 0.095),
			shape("n1-standard-4", 4, 15, 0.19),
			shape("c2-standard-8", 8, 32, 0.382),
			shape("a2-highgpu-1g", 12, 85, 3.67),
		},
		ProviderOCI: {
			shape("VM.Standard.E2.1", 1, 8, 0.03),
			shape("VM.Standard.E2.2", 2, 16, 0.06),
			shape("VM.Standard.E3.Flex", 4, 32, 0.085),
			shape("VM.GPU2.1", 12, 72, 2.95),
		},
	}
}

// Lookup finds an instance type by provider and name.
func (c Catalog) Lookup(provider Provider, name string) (InstanceType, bool) {
	for _, t := range c[provider] {
		if t.Name == name {
			return t, true
		}
	}
	return InstanceType{}, false
}

// Regions lists the regions instances are placed in.
var Regions = map[Provider][]string{
	ProviderAWS: {"us-east-1", "us-west-2", "eu-west-1", "ap-southeast-1"},
	ProviderGCP: {"us-central1", "us-east1", "europe-west1", "asia-east1"},
	ProviderOCI: {"us-ashburn-1", "us-phoenix-1", "eu-frankfurt-1", "ap-tokyo-1"},
}
