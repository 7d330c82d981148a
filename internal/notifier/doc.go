// Package notifier groups the stock.Notifier implementations:
//   - pubsub publishes to a Google Cloud Pub/Sub topic.
//   - sns publishes to an AWS SNS topic.
//   - memory records messages in-process for tests and dry runs.
//
// Lazy wraps a transport so its client is created on the first publish.
package notifier
