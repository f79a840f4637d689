package queue

import (
	"testing"
)

func TestGetPartitionForDevice(t *testing.T) {
	const numPartitions = 10

	p := GetPartitionForDevice("device-abc", numPartitions)
	if p < 0 || p >= numPartitions {
		t.Fatalf("partition %d out of range", p)
	}

	// Same device always maps to the same partition
	for i := 0; i < 100; i++ {
		if got := GetPartitionForDevice("device-abc", numPartitions); got != p {
			t.Fatalf("partition changed: %d != %d", got, p)
		}
	}
}

func TestGetPartitionForDeviceSpread(t *testing.T) {
	const numPartitions = 10

	seen := make(map[int]bool)
	devices := []string{"device-a", "device-b", "device-c", "device-d", "device-e", "device-f"}
	for _, id := range devices {
		seen[GetPartitionForDevice(id, numPartitions)] = true
	}

	if len(seen) < 2 {
		t.Errorf("expected devices to spread over partitions, got %d", len(seen))
	}
}
