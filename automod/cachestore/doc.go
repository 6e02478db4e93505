// Component for caching short strings (eg, each sender's last chat line) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The engine reads other senders' cached lines when scanning for join floods; with the redis implementation, lines written on one node are visible to the others.
package cachestore
