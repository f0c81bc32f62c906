// Package klog reads platform-specific kernel log devices and decodes
// their records into the common log record shape.
//
// The facility is capability-gated: Open returns (nil, nil) on platforms
// without a readable kernel device, and the rest of the daemon simply
// runs without a kernel source.
package klog

// SourceName is the inventory name under which kernel records are
// ingested.
const SourceName = "klog"

// KernelIdentity is the sentinel stamped into the hostname and app-name
// fields of every kernel record, since the kernel asserts neither.
const KernelIdentity = "kernel"
