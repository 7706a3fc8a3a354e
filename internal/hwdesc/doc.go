// Package hwdesc resolves the LED pin from a hardware description.
//
// Two sources are supported:
//   - DeviceTree reads the flattened device tree the kernel exposes under
//     /proc/device-tree, where a node is a directory and a property is a file
//     of big-endian 32-bit cells.
//   - File reads a YAML description for boards without a device tree.
//
// Both implement Resolver. Lookups are pure: they never modify the source and
// the returned Node handles need no release.
//
// Usage:
//
//	res := hwdesc.NewDeviceTree(os.DirFS("/proc/device-tree"))
//	node, err := res.ResolveNode("/gpioled")
//	if err != nil {
//	    return err
//	}
//	pin, err := res.ResolveNamedPin(node, "led-gpios", 0)
package hwdesc
