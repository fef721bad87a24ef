// Command parkingctl inspects and administers the lot directly through the
// configured storage backend. Stop the server first when using the file or
// SQLite backend.
package main

func main() {
	Execute()
}
