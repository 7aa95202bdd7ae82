/*
	Package craft provides the process-wide plumbing shared by the craft2 packages: leveled
	logging, byte serialization with optional compression and checksums, path handling and
	version information.
*/
package craft
