// Package social publishes cross-post content for high-performing
// campaigns to the configured social platforms.
//
// Each platform client authenticates with a bearer token and retries
// transient failures. The Dispatcher renders the post copy per platform
// and reports one domain.PostResult per requested platform; a failure on
// one platform never stops the others.
package social
