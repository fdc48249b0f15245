// Package script implements toolkit.ScriptDirectory over a directory of
// revision files.
//
// A revision file is a .sql file whose header is a block of revisor
// directives, followed by one upgrade/downgrade section pair per
// logical database:
//
//	-- revisor:revision 1724560001
//	-- revisor:parents 1724550000
//	-- revisor:labels auth
//	-- revisor:depends 1724540000
//	-- revisor:message add users table
//
//	-- revisor:upgrade
//	CREATE TABLE users (id INTEGER PRIMARY KEY);
//
//	-- revisor:downgrade
//	DROP TABLE users;
//
// Multi-database scripts name their sections
// (-- revisor:upgrade other). Files are discovered in the script root
// and every configured version location, and new revisions are rendered
// from the script.sql.tmpl template installed in the script root.
package script
