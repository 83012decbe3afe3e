package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ResourceType identifies one dimension of a ResourceBag.
type ResourceType string

const (
	CPUs   ResourceType = "cpus"
	RamMb  ResourceType = "ram_mb"
	DiskMb ResourceType = "disk_mb"
)

func (t ResourceType) String() string {
	return string(t)
}

// ResourceBag maps a ResourceType to a quantity.
//
// A missing ResourceType is treated as a quantity of zero.
type ResourceBag map[ResourceType]float64

// NewResourceBag creates a ResourceBag with the given CPU, memory (MB), and disk (MB) quantities.
func NewResourceBag(cpus float64, ramMb float64, diskMb float64) ResourceBag {
	return ResourceBag{
		CPUs:   cpus,
		RamMb:  ramMb,
		DiskMb: diskMb,
	}
}

// ValueOf returns the quantity of the given ResourceType, or 0 if the bag does not contain it.
func (b ResourceBag) ValueOf(t ResourceType) float64 {
	if b == nil {
		return 0
	}

	return b[t]
}

// Vector returns the CPU, memory, and disk quantities of the bag as a ResourceVector.
func (b ResourceBag) Vector() ResourceVector {
	return ResourceVector{
		CPU:    b.ValueOf(CPUs),
		Memory: b.ValueOf(RamMb),
		Disk:   b.ValueOf(DiskMb),
	}
}

func (b ResourceBag) String() string {
	return fmt.Sprintf("ResourceBag[CPUs: %.2f, Memory: %.2f MB, Disk: %.2f MB]",
		b.ValueOf(CPUs), b.ValueOf(RamMb), b.ValueOf(DiskMb))
}

// ResourceVector is the (cpu, memory, disk) triple exchanged with the ranking service.
//
// It describes either the resource ask of a pending task or the aggregate capacity of a host.
type ResourceVector struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
	Disk   float64 `json:"disk"`
}

// Add returns the element-wise sum of the two vectors.
//
// The sum is computed with decimal arithmetic so that adding the revocable and non-revocable halves of
// an offer yields the same quantity the agent advertised (e.g., 0.1 + 0.2 == 0.3).
func (v ResourceVector) Add(other ResourceVector) ResourceVector {
	return ResourceVector{
		CPU:    addExact(v.CPU, other.CPU),
		Memory: addExact(v.Memory, other.Memory),
		Disk:   addExact(v.Disk, other.Disk),
	}
}

func (v ResourceVector) String() string {
	return fmt.Sprintf("ResourceVector[CPU: %.2f, Memory: %.2f, Disk: %.2f]", v.CPU, v.Memory, v.Disk)
}

func addExact(a float64, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}
