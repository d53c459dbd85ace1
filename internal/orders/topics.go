package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderExpired   = "order.expired"
	TopicOrderCancelled = "order.cancelled"
)

// Partition key = order_code, supaya semua event 1 order maintain urutan.
func PartitionKey(orderCode string) []byte { return []byte(orderCode) }
