// Command reelsmith assembles narrated short-form videos from stock clips.
//
// Subcommands:
//
//	assemble <request>   run one request file (JSON or YAML) in the foreground
//	serve                run the HTTP API and optional Kafka intake
//	runs list|show|prune inspect run history
//	staging list|clean   inspect or sweep scratch workspaces
//	deps                 check ffmpeg and ffprobe availability
//	logs [--run id]      show or follow the log file
//	config init|validate manage the configuration file
//
// Environment variables from a .env file in the working directory (or the
// file named by --env-file) are loaded before configuration.
package main
