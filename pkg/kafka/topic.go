package kafka

import "fmt"

// TopicPrefix namespaces every storefront topic.
const TopicPrefix = "storefront"

// Topic builds "storefront.<domain>.<action>".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
