// Command clarifai turns a concept into an animated explainer video.
//
// Subcommands:
//
//	generate   plan, render and assemble a concept video
//	status     show one job with its log
//	list       list jobs, optionally for one owner
//	check      verify binaries, directories and the oracle
//	test-notify send a test notification
//	config     create or validate the configuration file
package main
