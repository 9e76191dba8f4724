// Package config loads the YAML file used by the nvme-mi commands.
//
// A file names the endpoints a command can talk to and the logging it
// should do:
//
//	default: drive0
//	protocol_log: /var/log/nvme-mi/capture.mlog
//	log_level: info
//	endpoints:
//	  drive0:
//	    address: 10.0.0.5:7000
//	    max_message_size: 4164
//	    timeout: 2s
//	    integrity_check: true
//
// Validation errors carry the line of the offending entry.
package config
