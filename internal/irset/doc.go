// Package irset stores breeze IR capability sets on disk.
//
// Each remote is kept as <dir>/<remote>.json in the vendor format:
//
//	{
//	  "IRSetID": "ELEC7022",
//	  "OnOffType": 1,
//	  "SeparatedSwing": false,
//	  "IRWaveList": [
//	    {"Key": "ar24_f1", "Para": "...", "HexCode": "..."}
//	  ]
//	}
//
// Store implements breeze.CapabilityProvider. Fetching sets from the vendor
// service is not done here; files are placed in the directory by the user
// or written with Save.
package irset
