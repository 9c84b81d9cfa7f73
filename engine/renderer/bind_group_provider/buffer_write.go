package bind_group_provider

// BufferWrite describes a single queue write targeting the buffer bound at Binding
// on a BindGroupProvider, starting at a byte Offset. Offset and len(Data) must be
// multiples of 4.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}
