/*
Package ddns implements a Dynamic DNS update endpoint backed by Cloudflare, and a client for it.

The server side starts with [NewCloudflare] and [NewService]:
a caller sends GET /update?hostname=...&myip=... with Basic credentials "zoneID:apiToken",
the token is verified with Cloudflare, and the hostname's A record is rewritten only when
it does not already hold myip. [NewRouter] exposes the service over HTTP.

Every Cloudflare call returns a [Result]; failures carry an [ErrorKind] instead of a Go error
so callers can branch on success without unwrapping.

The client side starts with [NewClient], which resolves the machine's public IPv4 address
with a [Resolver] and reports it to the endpoint. [RunDaemon] repeats that on an interval.
*/
package ddns
