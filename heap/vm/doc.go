// Package vm simulates the machine the kernel heap runs on: physical RAM
// split into 4 KiB frames, a boot memory map, a forward-only frame
// provider, and an x86_64-style 4-level page table that lives inside that
// RAM.
//
// The heap bootstrapper consumes two narrow capabilities from this package:
//
//   - FrameProvider: hands out unused physical frames
//   - Mapper: installs a page → frame translation and returns a Flush that
//     must be applied to drop any stale cached translation
//
// AddressSpace implements Mapper and also gives byte and word access to
// virtual memory, translating every access through the page tables and a
// small translation cache. Touching an unmapped page, or writing a page
// mapped without Writable, panics with *PageFault, the way a kernel with no
// fault handler for the heap would halt.
//
// # Usage Example
//
//	m, err := vm.NewMachine(4 << 20)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	page := vm.PageContaining(0x_4444_4444_0000)
//	frame, _ := m.Frames.AllocateFrame()
//	flush, err := m.Space.MapTo(page, frame, vm.FlagPresent|vm.FlagWritable, m.Frames)
//	if err != nil {
//	    return err
//	}
//	flush.Flush()
package vm
